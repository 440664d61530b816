package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Set up Viper
	l.setupViper(cfg)

	// Load config file
	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply env var overrides (Viper's Unmarshal doesn't properly merge env vars for nested structs)
	l.applyEnvOverrides(cfg)

	// Expand ~ in paths
	expandPaths(cfg)

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
	cfg.Host.Addr = expandTilde(cfg.Host.Addr)
	cfg.Prefs.Path = expandTilde(cfg.Prefs.Path)
	cfg.HostSim.DBPath = expandTilde(cfg.HostSim.DBPath)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "chatsync"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "chatsync"))
	}

	// Current directory
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHATSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults from config struct
	l.setDefaults(cfg)

	// Explicitly bind environment variables (Viper's Unmarshal has issues without this)
	bindEnvVars(v)

	// AutomaticEnv for any keys not explicitly bound
	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Global
	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// Host
	v.SetDefault("host.addr", cfg.Host.Addr)
	v.SetDefault("host.dial_timeout", cfg.Host.DialTimeout)
	v.SetDefault("host.request_timeout", cfg.Host.RequestTimeout)

	// Sync
	v.SetDefault("sync.status_interval", cfg.Sync.StatusInterval)
	v.SetDefault("sync.reconcile_interval", cfg.Sync.ReconcileInterval)
	v.SetDefault("sync.tick_interval", cfg.Sync.TickInterval)
	v.SetDefault("sync.highlight_decay", cfg.Sync.HighlightDecay)
	v.SetDefault("sync.expiry_grace", cfg.Sync.ExpiryGrace)
	v.SetDefault("sync.toast_duration", cfg.Sync.ToastDuration)
	v.SetDefault("sync.message_limit", cfg.Sync.MessageLimit)

	// TUI
	v.SetDefault("tui.refresh_interval", cfg.TUI.RefreshInterval)
	v.SetDefault("tui.theme", cfg.TUI.Theme)

	// Prefs
	v.SetDefault("prefs.path", cfg.Prefs.Path)

	// Reference host
	v.SetDefault("hostsim.db_path", cfg.HostSim.DBPath)
	v.SetDefault("hostsim.sweep_interval", cfg.HostSim.SweepInterval)
	v.SetDefault("hostsim.check_delay", cfg.HostSim.CheckDelay)
	v.SetDefault("hostsim.follow_up_delay", cfg.HostSim.FollowUpDelay)
	v.SetDefault("hostsim.intervention_duration", cfg.HostSim.InterventionDuration)
	v.SetDefault("hostsim.journal_limit", cfg.HostSim.JournalLimit)
	v.SetDefault("hostsim.busy_timeout", cfg.HostSim.BusyTimeout)
	v.SetDefault("hostsim.write_attempts", cfg.HostSim.WriteAttempts)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Viper returns the underlying Viper instance for advanced use.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// bindEnvVars binds environment variables for config keys.
// Viper's Unmarshal has issues with env vars on nested structs unless explicitly bound.
func bindEnvVars(v *viper.Viper) {
	envBindings := []string{
		// Global
		"global.data_dir",
		"global.config_dir",
		// Logging
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.enable_caller",
		// Host
		"host.addr",
		"host.dial_timeout",
		"host.request_timeout",
		// Sync
		"sync.status_interval",
		"sync.reconcile_interval",
		"sync.tick_interval",
		"sync.highlight_decay",
		"sync.expiry_grace",
		"sync.toast_duration",
		"sync.message_limit",
		// TUI
		"tui.refresh_interval",
		"tui.theme",
		// Prefs
		"prefs.path",
		// Reference host
		"hostsim.db_path",
		"hostsim.sweep_interval",
		"hostsim.check_delay",
		"hostsim.follow_up_delay",
		"hostsim.intervention_duration",
		"hostsim.journal_limit",
		"hostsim.busy_timeout",
		"hostsim.write_attempts",
	}

	for _, key := range envBindings {
		// Convert key to env var format: host.addr -> CHATSYNC_HOST_ADDR
		envVar := "CHATSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envVar)
	}
}

// applyEnvOverrides manually applies env var overrides to the config struct.
// This is needed because Viper's Unmarshal doesn't properly merge env vars
// for nested struct fields when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	// Global
	if dataDir := v.GetString("global.data_dir"); dataDir != "" {
		cfg.Global.DataDir = dataDir
	}
	if configDir := v.GetString("global.config_dir"); configDir != "" {
		cfg.Global.ConfigDir = configDir
	}

	// Logging
	if level := v.GetString("logging.level"); level != "" && level != "info" { // "info" is default
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" && format != "console" { // "console" is default
		cfg.Logging.Format = format
	}
	if file := v.GetString("logging.file"); file != "" {
		cfg.Logging.File = file
	}

	// Host
	if addr := v.GetString("host.addr"); addr != "" {
		cfg.Host.Addr = addr
	}
	if timeout := v.GetDuration("host.request_timeout"); timeout > 0 {
		cfg.Host.RequestTimeout = timeout
	}

	// Prefs
	if path := v.GetString("prefs.path"); path != "" {
		cfg.Prefs.Path = path
	}
}
