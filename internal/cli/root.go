// Package cli implements the chatsync command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tOgg1/chatsync/internal/config"
	"github.com/tOgg1/chatsync/internal/logging"
)

var (
	cfgFile        string
	logLevel       string
	logFormat      string
	hostAddr       string
	jsonOutput     bool
	nonInteractive bool

	appConfig *config.Config
	loader    *config.Loader

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "Conversation sync client for a chat host",
	Long: `chatsync mirrors conversations, follow-up schedules and AI modes from a
chat host and keeps them current through pushes and periodic pulls.

Run without a subcommand to open the terminal UI.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/chatsync/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "override logging format (json, console)")
	flags.StringVar(&hostAddr, "host-addr", "", "host address, unix socket path or host:port")
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never start the TUI or prompt")
	flags.Bool("robot-help", false, "machine-oriented quick reference")
}

// SetVersion records build information shown by `chatsync version`.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	if hasRobotHelpFlag(os.Args[1:]) {
		printRobotHelp(os.Stdout)
		return nil
	}
	err := rootCmd.Execute()
	var preflight *PreflightError
	if errors.As(err, &preflight) {
		fmt.Fprintln(os.Stderr, preflight.Detail())
		return errSilent
	}
	return err
}

// errSilent is returned when the error has already been printed.
var errSilent = errors.New("")

// IsSilent reports whether err was already reported to the user.
func IsSilent(err error) bool {
	return errors.Is(err, errSilent)
}

func initConfig(cmd *cobra.Command, args []string) error {
	loader = config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	if f := cmd.Flags().Lookup("host-addr"); f != nil {
		if err := loader.Viper().BindPFlag("host.addr", f); err != nil {
			return fmt.Errorf("bind --host-addr: %w", err)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if hostAddr != "" {
		cfg.Host.Addr = hostAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       logOutput(cfg),
		EnableCaller: cfg.Logging.EnableCaller,
	})
	if used := loader.ConfigFileUsed(); used != "" {
		logging.Logger.Debug().Str("config_file", used).Msg("loaded config file")
	}

	appConfig = cfg
	return nil
}

// logOutput keeps logs off the terminal the TUI draws on.
func logOutput(cfg *config.Config) io.Writer {
	path := strings.TrimSpace(cfg.Logging.File)
	if path == "" {
		return os.Stderr
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return os.Stderr
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr
	}
	return f
}

func logger() zerolog.Logger {
	return logging.Component("cli")
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return appConfig
}

// IsJSONOutput reports whether --json was passed.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsNonInteractive reports whether prompts and the TUI are disabled.
func IsNonInteractive() bool {
	return nonInteractive || !hasTTY()
}

// WriteOutput writes v as indented JSON.
func WriteOutput(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PreflightError is a user-facing failure with a suggested next step.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	return e.Message
}

// Detail renders the message with its hint and next step.
func (e *PreflightError) Detail() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
	}
	if e.NextStep != "" {
		b.WriteString("\nTry: ")
		b.WriteString(e.NextStep)
	}
	return b.String()
}

func hasRobotHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "--robot-help" {
			return true
		}
	}
	return false
}
