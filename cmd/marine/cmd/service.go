/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/marinedb/pkg/config"
)

const (
	unitName       = "marine.service"
	defaultUnitDir = "/etc/systemd/system"
)

// runCommand runs a system command with the process's stdio. Tests replace it.
var runCommand = func(command string, args ...string) error {
	c := exec.Command(command, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func systemctl(args ...string) error {
	return runCommand("systemctl", args...)
}

func newServiceCmd(a *app) *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage MarineDB as a systemd service",
		Long: `Manage MarineDB as a systemd service.

The unit runs "marine serve" against a config file, restarts on failure and
may only write to the data and config directories.`,
	}

	var unitDir string
	serviceCmd.PersistentFlags().StringVar(&unitDir, "unit-dir", defaultUnitDir, "Directory holding the systemd unit file")

	serviceCmd.AddCommand(
		newServiceInstallCmd(a, &unitDir),
		newServiceUninstallCmd(&unitDir),
		newSystemctlCmd("start", "Start the MarineDB service", "started"),
		newSystemctlCmd("stop", "Stop the MarineDB service", "stopped"),
		newSystemctlCmd("restart", "Restart the MarineDB service", "restarted"),
		newSystemctlCmd("status", "Show MarineDB service status", ""),
		newServiceLogsCmd(),
	)
	return serviceCmd
}

func newServiceInstallCmd(a *app, unitDir *string) *cobra.Command {
	var (
		user   string
		binary string
		start  bool
	)

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install MarineDB as a systemd service",
		Long: `Install MarineDB as a systemd service.

This will:
- Create the config file when it does not exist yet
- Write the systemd unit file
- Reload systemd, enable and optionally start the service

Examples:
  marine service install
  marine service install --data-dir /var/lib/marinedb --user marine --driver pebble`,
		Annotations: map[string]string{bootstrapAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if !config.ConfigExists(a.configPath) {
				if cfg.Security.APIKey == "" {
					key, err := config.GenerateSecureKey(32)
					if err != nil {
						return err
					}
					cfg.Security.APIKey = key
				}
				cmd.Printf("Created new configuration at %s\n", a.configPath)
			}
			if err := config.SaveConfig(cfg, a.configPath); err != nil {
				return err
			}

			if binary == "" {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("failed to locate marine binary: %w", err)
				}
				binary = exe
			}
			unitPath := filepath.Join(*unitDir, unitName)
			if err := writeSystemdUnit(unitPath, cfg, a.configPath, binary, user); err != nil {
				return fmt.Errorf("failed to write unit file: %w", err)
			}

			if err := systemctl("daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}
			if err := systemctl("enable", unitName); err != nil {
				return fmt.Errorf("failed to enable service: %w", err)
			}
			if start {
				if err := systemctl("start", unitName); err != nil {
					return fmt.Errorf("failed to start service: %w", err)
				}
			}

			cmd.Printf("MarineDB service installed\n")
			cmd.Printf("Unit: %s\n", unitPath)
			cmd.Printf("Config: %s\n", a.configPath)
			cmd.Printf("Data: %s (driver %s)\n", cfg.DataDir, driverLabel(cfg.Storage.Driver))
			cmd.Printf("Listen: %s:%d\n", cfg.Bind, cfg.Port)
			if !start {
				cmd.Printf("\nTo start the service: sudo systemctl start %s\n", unitName)
			}
			cmd.Printf("To view logs: marine service logs -f\n")
			return nil
		},
	}

	installCmd.Flags().StringVar(&user, "user", "marine", "User to run the service as")
	installCmd.Flags().StringVar(&binary, "binary", "", "Path of the marine binary (default: this executable)")
	installCmd.Flags().BoolVar(&start, "start", true, "Start the service after installation")
	return installCmd
}

func newServiceUninstallCmd(unitDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the MarineDB service",
		Long:  "Stop, disable and remove the MarineDB unit. Config and data files are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = systemctl("stop", unitName) // already stopped is fine
			if err := systemctl("disable", unitName); err != nil {
				cmd.Printf("Warning: could not disable service: %v\n", err)
			}

			unitPath := filepath.Join(*unitDir, unitName)
			if err := os.Remove(unitPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove unit file: %w", err)
			}
			if err := systemctl("daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}

			cmd.Printf("MarineDB service uninstalled\n")
			cmd.Printf("Note: configuration and data files were not removed\n")
			return nil
		},
	}
}

// newSystemctlCmd wraps a single "systemctl <verb> marine.service" call.
func newSystemctlCmd(verb, short, done string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := systemctl(verb, unitName); err != nil {
				return fmt.Errorf("systemctl %s: %w", verb, err)
			}
			if done != "" {
				cmd.Printf("MarineDB service %s\n", done)
			}
			return nil
		},
	}
}

func newServiceLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show MarineDB service logs",
		Long: `Show MarineDB service logs using journalctl.

Examples:
  marine service logs
  marine service logs -f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			journalArgs := []string{"-u", unitName}
			if follow {
				journalArgs = append(journalArgs, "-f")
			}
			if lines > 0 {
				journalArgs = append(journalArgs, fmt.Sprintf("-n%d", lines))
			}
			return runCommand("journalctl", journalArgs...)
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show")
	return logsCmd
}

// writeSystemdUnit renders the unit for cfg. The service may only write to the
// data directory and the directory holding its config.
func writeSystemdUnit(unitPath string, cfg *config.Config, configPath, binary, user string) error {
	unit := fmt.Sprintf(`[Unit]
Description=MarineDB Server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s serve --config %s
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths=%s
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, cfg.DataDir, filepath.Dir(configPath))

	return os.WriteFile(unitPath, []byte(unit), 0600)
}
