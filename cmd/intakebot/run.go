package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/intakebot/core/cmd"
	"github.com/m3rciful/intakebot/internal/app"
	"github.com/m3rciful/intakebot/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flag, _ := cmd.Flags().GetString("config")
		return corecmd.Run(corecmd.Options{
			ConfigPath:        flag,
			ConfigEnvVar:      configEnvVar,
			DefaultConfigPath: defaultConfigPath,
			LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
				return config.Load(path)
			},
			Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
				appCfg, ok := cfg.(*config.Config)
				if !ok {
					return nil, fmt.Errorf("unexpected config type %T", cfg)
				}
				return app.New(ctx, appCfg)
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
