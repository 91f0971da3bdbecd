/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/auth"
	"github.com/ssargent/marinedb/pkg/config"
	"github.com/ssargent/marinedb/pkg/di"
	"github.com/ssargent/marinedb/pkg/logging"
	"github.com/ssargent/marinedb/pkg/marine"
	"github.com/ssargent/marinedb/pkg/pool"
)

// bootstrapAnnotation marks commands that may run before their config file exists.
const bootstrapAnnotation = "marine/bootstrap"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	container *di.Container

	configPath string
	dataDir    string
	driver     string
	as         string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd assembles the marine command tree around container.
func NewRootCmd(container *di.Container) *cobra.Command {
	a := &app{container: container}

	rootCmd := &cobra.Command{
		Use:   "marine",
		Short: "MarineDB - taxonomy and marine species records",
		Long: `MarineDB keeps researcher-owned taxonomy and marine species records
in a single embedded pool, served over HTTP or managed from this CLI.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	flags.StringVarP(&a.dataDir, "data-dir", "d", "", "Data directory for the pool")
	flags.StringVar(&a.driver, "driver", "", fmt.Sprintf("Storage driver %v", pool.Drivers))
	flags.StringVar(&a.as, "as", os.Getenv("USER"), "Principal recorded as the researcher of new records")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newInitCmd(a),
		newServeCmd(a),
		newTaxonomyCmd(a),
		newSpeciesCmd(a),
		newStatsCmd(a),
		newCompactCmd(a),
		newSnapshotCmd(a),
		newServiceCmd(a),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(container *di.Container) {
	if err := NewRootCmd(container).Execute(); err != nil {
		os.Exit(1)
	}
}

// load resolves configuration: file, then MARINE_* variables, then flags.
func (a *app) load(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(path) {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if a.configPath != "" && cmd.Annotations[bootstrapAnnotation] == "" {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	a.configPath = path

	cfg.ApplyEnv()
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.driver != "" {
		cfg.Storage.Driver = a.driver
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// principal is the caller identity for mutations.
func (a *app) principal() (auth.Principal, error) {
	p := auth.Principal(a.as)
	if p.IsAnonymous() {
		return "", fmt.Errorf("a principal is required: pass --as <name>")
	}
	return p, nil
}

func (a *app) openPool() (pool.Pool, error) {
	interval, err := a.cfg.FsyncInterval()
	if err != nil {
		return nil, err
	}
	p, err := a.container.GetPoolOpener()(pool.Options{
		Driver:        a.cfg.Storage.Driver,
		Dir:           a.cfg.DataDir,
		DSN:           a.cfg.Storage.DSN,
		FsyncInterval: interval,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	return p, nil
}

func (a *app) openRegistry() (*marine.Registry, error) {
	p, err := a.openPool()
	if err != nil {
		return nil, err
	}
	reg, err := marine.Open(p, marine.Options{
		AllowEmptyResults: a.cfg.Service.AllowEmptyResults,
		PageSize:          a.cfg.Storage.PageSize,
		Logger:            a.logger,
	})
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return reg, nil
}

// withRegistry opens the registry for the duration of fn.
func (a *app) withRegistry(fn func(reg *marine.Registry) error) (err error) {
	reg, err := a.openRegistry()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := reg.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(reg)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
