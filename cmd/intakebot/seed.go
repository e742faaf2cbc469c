package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/intakebot/core/bootstrap"
	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/internal/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the catalog seed file into an empty catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Catalog.SeedFile
		if f, _ := cmd.Flags().GetString("file"); f != "" {
			path = f
		}
		if path == "" {
			return fmt.Errorf("no seed file: set catalog.seed_file or pass --file")
		}
		defer func() { _ = logger.Shutdown() }()

		res, err := bootstrap.Run(cmd.Context(), bootstrap.Options{
			Config:   &cfg.Config,
			Database: cfg.Database,
			Seeders:  []bootstrap.Seeder{catalog.Seeder{Path: path}},
		})
		if err != nil {
			return err
		}
		return res.DB.Close()
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("file", "", "Seed file to load instead of catalog.seed_file")
}
