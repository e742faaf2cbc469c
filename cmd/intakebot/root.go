package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/intakebot/core/cmd"
	"github.com/m3rciful/intakebot/internal/config"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

var rootCmd = &cobra.Command{
	Use:           "intakebot",
	Short:         "Telegram bot that collects service requests",
	Long:          `intakebot shows a service catalog in Telegram, asks for a name and phone number, and stores one request per user session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config (default $"+configEnvVar+" or "+defaultConfigPath+")")
}

// loadConfig resolves the config path from --config, the environment or the default.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flag, _ := cmd.Flags().GetString("config")
	path, err := corecmd.ResolveConfigPath(flag, configEnvVar, defaultConfigPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}
