/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/marinedb/pkg/config"
	"github.com/ssargent/marinedb/pkg/marine"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file and prepare the data directory",
		Long: `Initialize MarineDB for local use.

This command will:
- Write a config file with a freshly generated API key
- Create the data directory
- Open the pool once so the region layout is claimed

Examples:
  marine init
  marine init --config ./marine.yaml --data-dir ./data --driver pebble`,
		Annotations: map[string]string{bootstrapAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ConfigExists(a.configPath) && !force {
				cmd.Printf("Config already exists at %s. Use --force to overwrite.\n", a.configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(a.configPath, a.cfg.DataDir)
			if err != nil {
				return err
			}
			cfg.Storage = a.cfg.Storage
			if err := config.SaveConfig(cfg, a.configPath); err != nil {
				return err
			}
			a.cfg.Security = cfg.Security

			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			if err := a.withRegistry(func(_ *marine.Registry) error { return nil }); err != nil {
				return err
			}

			cmd.Printf("MarineDB initialized\n")
			cmd.Printf("Config file: %s\n", a.configPath)
			cmd.Printf("Data directory: %s (driver %s)\n", cfg.DataDir, driverLabel(cfg.Storage.Driver))
			cmd.Printf("API key: %s\n", cfg.Security.APIKey)
			cmd.Printf("\nStart the server with:\n  marine serve --config %s\n", a.configPath)
			return nil
		},
	}

	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return initCmd
}

func driverLabel(driver string) string {
	if driver == "" {
		return "log"
	}
	return driver
}
