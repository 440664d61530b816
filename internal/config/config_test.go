package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10*time.Second, cfg.Sync.StatusInterval)
	require.Equal(t, 30*time.Second, cfg.Sync.ReconcileInterval)
	require.Equal(t, 2*time.Second, cfg.Sync.HighlightDecay)
	require.Equal(t, 4*time.Second, cfg.Sync.ToastDuration)
	require.Equal(t, filepath.Join(cfg.Global.DataDir, "prefs.json"), cfg.PrefsPath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing host", func(c *Config) { c.Host.Addr = "" }, "host.addr"},
		{"tick too small", func(c *Config) { c.Sync.TickInterval = time.Millisecond }, "sync.tick_interval"},
		{"status below tick", func(c *Config) { c.Sync.StatusInterval = 500 * time.Millisecond }, "sync.status_interval"},
		{"negative grace", func(c *Config) { c.Sync.ExpiryGrace = -time.Second }, "sync.expiry_grace"},
		{"zero toast", func(c *Config) { c.Sync.ToastDuration = 0 }, "sync.toast_duration"},
		{"bad theme", func(c *Config) { c.TUI.Theme = "neon" }, "tui.theme"},
		{"zero limit", func(c *Config) { c.Sync.MessageLimit = 0 }, "sync.message_limit"},
		{"negative busy timeout", func(c *Config) { c.HostSim.BusyTimeout = -time.Second }, "hostsim.busy_timeout"},
		{"no write attempts", func(c *Config) { c.HostSim.WriteAttempts = 0 }, "hostsim.write_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
host:
  addr: 127.0.0.1:7070
sync:
  reconcile_interval: 45s
tui:
  theme: dark
hostsim:
  busy_timeout: 250ms
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7070", cfg.Host.Addr)
	require.Equal(t, 45*time.Second, cfg.Sync.ReconcileInterval)
	require.Equal(t, "dark", cfg.TUI.Theme)
	require.Equal(t, 10*time.Second, cfg.Sync.StatusInterval)
	require.Equal(t, 250*time.Millisecond, cfg.HostSim.BusyTimeout)
	require.Equal(t, 3, cfg.HostSim.WriteAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host:\n  addr: 127.0.0.1:7070\n"), 0o644))

	t.Setenv("CHATSYNC_HOST_ADDR", "/run/chatsync/host.sock")
	t.Setenv("CHATSYNC_LOGGING_LEVEL", "debug")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "/run/chatsync/host.sock", cfg.Host.Addr)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  tick_interval: 1ms\n"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "config validation failed")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, home, expandTilde("~"))
	require.Equal(t, filepath.Join(home, "x", "y"), expandTilde("~/x/y"))
	require.Equal(t, "/abs", expandTilde("/abs"))
	require.Equal(t, "", expandTilde(""))
}
