package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/marinedb/pkg/config"
)

// recordCommands swaps runCommand for a recorder for the duration of the test.
func recordCommands(t *testing.T, fail string) *[]string {
	t.Helper()
	var calls []string
	orig := runCommand
	runCommand = func(command string, args ...string) error {
		line := strings.Join(append([]string{command}, args...), " ")
		calls = append(calls, line)
		if fail != "" && strings.HasPrefix(line, fail) {
			return errors.New("exit status 1")
		}
		return nil
	}
	t.Cleanup(func() { runCommand = orig })
	return &calls
}

func TestServiceInstall(t *testing.T) {
	isolate(t)
	calls := recordCommands(t, "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "etc", "marine.yaml")
	dataDir := filepath.Join(tmpDir, "data")
	unitDir := t.TempDir()

	out := mustRun(t, "service", "install",
		"--config", configPath, "-d", dataDir, "--driver", "sqlite",
		"--unit-dir", unitDir, "--user", "reef", "--binary", "/usr/local/bin/marine")
	assert.Contains(t, out, "Created new configuration")
	assert.Contains(t, out, "MarineDB service installed")

	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable marine.service",
		"systemctl start marine.service",
	}, *calls)

	unit, err := os.ReadFile(filepath.Join(unitDir, unitName))
	require.NoError(t, err)
	content := string(unit)
	assert.Contains(t, content, "User=reef")
	assert.Contains(t, content, "Group=reef")
	assert.Contains(t, content, "ExecStart=/usr/local/bin/marine serve --config "+configPath)
	assert.Contains(t, content, "ReadWritePaths="+dataDir)
	assert.Contains(t, content, "ReadWritePaths="+filepath.Dir(configPath))

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Len(t, cfg.Security.APIKey, 64)

	// A second install keeps the existing key and skips the start.
	*calls = nil
	out = mustRun(t, "service", "install", "--config", configPath, "--unit-dir", unitDir, "--start=false", "--binary", "/usr/local/bin/marine")
	assert.NotContains(t, out, "Created new configuration")
	assert.Contains(t, out, "sudo systemctl start marine.service")
	assert.Equal(t, []string{"systemctl daemon-reload", "systemctl enable marine.service"}, *calls)

	again, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Security.APIKey, again.Security.APIKey)
}

func TestServiceInstall_ReloadFails(t *testing.T) {
	isolate(t)
	recordCommands(t, "systemctl daemon-reload")
	configPath := filepath.Join(t.TempDir(), "marine.yaml")

	_, err := run(t, "service", "install", "--config", configPath, "--unit-dir", t.TempDir(), "--binary", "marine")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reload systemd")
}

func TestServiceUninstall(t *testing.T) {
	isolate(t)
	calls := recordCommands(t, "systemctl stop")
	unitDir := t.TempDir()
	unitPath := filepath.Join(unitDir, unitName)
	require.NoError(t, os.WriteFile(unitPath, []byte("[Unit]\n"), 0600))

	out := mustRun(t, "service", "uninstall", "--unit-dir", unitDir)
	assert.Contains(t, out, "MarineDB service uninstalled")
	assert.NoFileExists(t, unitPath)
	assert.Equal(t, []string{
		"systemctl stop marine.service",
		"systemctl disable marine.service",
		"systemctl daemon-reload",
	}, *calls)

	// Uninstalling twice is harmless.
	mustRun(t, "service", "uninstall", "--unit-dir", unitDir)
}

func TestServiceSystemctlCommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
		out  string
	}{
		{args: []string{"start"}, want: "systemctl start marine.service", out: "MarineDB service started"},
		{args: []string{"stop"}, want: "systemctl stop marine.service", out: "MarineDB service stopped"},
		{args: []string{"restart"}, want: "systemctl restart marine.service", out: "MarineDB service restarted"},
		{args: []string{"status"}, want: "systemctl status marine.service"},
		{args: []string{"logs"}, want: "journalctl -u marine.service"},
		{args: []string{"logs", "-f", "-n", "50"}, want: "journalctl -u marine.service -f -n50"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			isolate(t)
			calls := recordCommands(t, "")
			out := mustRun(t, append([]string{"service"}, tt.args...)...)
			assert.Equal(t, []string{tt.want}, *calls)
			if tt.out != "" {
				assert.Contains(t, out, tt.out)
			}
		})
	}

	t.Run("failure surfaces", func(t *testing.T) {
		isolate(t)
		recordCommands(t, "systemctl start")
		_, err := run(t, "service", "start")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "systemctl start")
	})
}
