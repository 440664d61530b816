// Package config handles chatsync configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for chatsync.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Host connection settings
	Host HostConfig `yaml:"host" mapstructure:"host"`

	// Sync engine timing
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// Prefs settings
	Prefs PrefsConfig `yaml:"prefs" mapstructure:"prefs"`

	// HostSim configures the reference host (chatsync-host).
	HostSim HostSimConfig `yaml:"hostsim" mapstructure:"hostsim"`
}

// GlobalConfig contains global chatsync settings.
type GlobalConfig struct {
	// DataDir is where chatsync stores its data (default: ~/.local/share/chatsync).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/chatsync).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console, auto).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// HostConfig describes how to reach the host process.
type HostConfig struct {
	// Addr is a unix socket path or host:port.
	Addr string `yaml:"addr" mapstructure:"addr"`

	// DialTimeout bounds connection attempts.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// RequestTimeout bounds a single host call.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// SyncConfig holds the engine's reconciliation and timer settings.
type SyncConfig struct {
	// StatusInterval is how often connection status is pulled.
	StatusInterval time.Duration `yaml:"status_interval" mapstructure:"status_interval"`

	// ReconcileInterval is how often interventions, follow-ups and checks are pulled.
	ReconcileInterval time.Duration `yaml:"reconcile_interval" mapstructure:"reconcile_interval"`

	// TickInterval drives countdowns and local expiry.
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`

	// HighlightDecay is how long a newly arrived message stays highlighted.
	HighlightDecay time.Duration `yaml:"highlight_decay" mapstructure:"highlight_decay"`

	// ExpiryGrace is how long past its instant a follow-up or check survives locally.
	ExpiryGrace time.Duration `yaml:"expiry_grace" mapstructure:"expiry_grace"`

	// ToastDuration is the dedup window of a notification.
	ToastDuration time.Duration `yaml:"toast_duration" mapstructure:"toast_duration"`

	// MessageLimit is how many messages a history pull requests.
	MessageLimit int `yaml:"message_limit" mapstructure:"message_limit"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// RefreshInterval is how often to redraw countdowns.
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`

	// Theme is the color theme (default, dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`
}

// PrefsConfig locates the UI preferences file.
type PrefsConfig struct {
	// Path is the preferences JSON file (default: DataDir/prefs.json).
	Path string `yaml:"path" mapstructure:"path"`
}

// HostSimConfig configures the reference host.
type HostSimConfig struct {
	// DBPath is the SQLite file; empty means DataDir/hostsim.db.
	DBPath string `yaml:"db_path" mapstructure:"db_path"`

	// SweepInterval is how often due checks and follow-ups fire.
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`

	// CheckDelay is how long after a peer message the eligibility check runs.
	CheckDelay time.Duration `yaml:"check_delay" mapstructure:"check_delay"`

	// FollowUpDelay is how long after a positive check the follow-up sends.
	FollowUpDelay time.Duration `yaml:"follow_up_delay" mapstructure:"follow_up_delay"`

	// InterventionDuration is how long a sent message suspends AI.
	InterventionDuration time.Duration `yaml:"intervention_duration" mapstructure:"intervention_duration"`

	// JournalLimit caps the number of journaled pushes.
	JournalLimit int `yaml:"journal_limit" mapstructure:"journal_limit"`

	// BusyTimeout is how long a store write waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`

	// WriteAttempts bounds retries of store writes that hit a locked database.
	WriteAttempts int `yaml:"write_attempts" mapstructure:"write_attempts"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "chatsync")

	return &Config{
		Global: GlobalConfig{
			DataDir:   dataDir,
			ConfigDir: filepath.Join(homeDir, ".config", "chatsync"),
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Host: HostConfig{
			Addr:           filepath.Join(dataDir, "host.sock"),
			DialTimeout:    2 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			StatusInterval:    10 * time.Second,
			ReconcileInterval: 30 * time.Second,
			TickInterval:      1 * time.Second,
			HighlightDecay:    2 * time.Second,
			ExpiryGrace:       1 * time.Second,
			ToastDuration:     4 * time.Second,
			MessageLimit:      200,
		},
		TUI: TUIConfig{
			RefreshInterval: 500 * time.Millisecond,
			Theme:           "default",
		},
		HostSim: HostSimConfig{
			SweepInterval:        5 * time.Second,
			CheckDelay:           10 * time.Minute,
			FollowUpDelay:        time.Hour,
			InterventionDuration: 30 * time.Minute,
			JournalLimit:         1000,
			BusyTimeout:          5 * time.Second,
			WriteAttempts:        3,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Host.Addr == "" {
		return fmt.Errorf("host.addr is required")
	}

	if c.Host.DialTimeout < 100*time.Millisecond {
		return fmt.Errorf("host.dial_timeout must be at least 100ms")
	}

	if c.Host.RequestTimeout < 100*time.Millisecond {
		return fmt.Errorf("host.request_timeout must be at least 100ms")
	}

	if c.Sync.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("sync.tick_interval must be at least 100ms")
	}

	if c.Sync.StatusInterval < c.Sync.TickInterval {
		return fmt.Errorf("sync.status_interval must be at least sync.tick_interval")
	}

	if c.Sync.ReconcileInterval < c.Sync.TickInterval {
		return fmt.Errorf("sync.reconcile_interval must be at least sync.tick_interval")
	}

	if c.Sync.HighlightDecay <= 0 {
		return fmt.Errorf("sync.highlight_decay must be positive")
	}

	if c.Sync.ExpiryGrace < 0 {
		return fmt.Errorf("sync.expiry_grace must not be negative")
	}

	if c.Sync.ToastDuration <= 0 {
		return fmt.Errorf("sync.toast_duration must be positive")
	}

	if c.Sync.MessageLimit < 1 {
		return fmt.Errorf("sync.message_limit must be at least 1")
	}

	if c.TUI.RefreshInterval < 50*time.Millisecond {
		return fmt.Errorf("tui.refresh_interval must be at least 50ms")
	}

	switch c.TUI.Theme {
	case "default", "dark", "light":
	default:
		return fmt.Errorf("tui.theme must be one of default, dark, light")
	}

	if c.HostSim.SweepInterval < 100*time.Millisecond {
		return fmt.Errorf("hostsim.sweep_interval must be at least 100ms")
	}

	if c.HostSim.BusyTimeout < 0 {
		return fmt.Errorf("hostsim.busy_timeout must not be negative")
	}

	if c.HostSim.WriteAttempts < 1 {
		return fmt.Errorf("hostsim.write_attempts must be at least 1")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// PrefsPath returns the full preferences path.
func (c *Config) PrefsPath() string {
	if c.Prefs.Path != "" {
		return c.Prefs.Path
	}
	return filepath.Join(c.Global.DataDir, "prefs.json")
}

// HostSimDBPath returns the reference host's database path.
func (c *Config) HostSimDBPath() string {
	if c.HostSim.DBPath != "" {
		return c.HostSim.DBPath
	}
	return filepath.Join(c.Global.DataDir, "hostsim.db")
}
