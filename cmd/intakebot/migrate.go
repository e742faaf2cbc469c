package main

import (
	"github.com/spf13/cobra"

	coredatabase "github.com/m3rciful/intakebot/core/database"
	"github.com/m3rciful/intakebot/core/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := logger.InitLogger(&cfg.Config); err != nil {
			return err
		}
		defer func() { _ = logger.Shutdown() }()
		return coredatabase.RunMigrations(cfg.Database)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
