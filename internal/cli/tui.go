package cli

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/chatsync/internal/chattui"
	"github.com/tOgg1/chatsync/internal/prefs"
)

func init() {
	rootCmd.AddCommand(tuiCmd)
}

var tuiCmd = &cobra.Command{
	Use:   "tui [conversation]",
	Short: "Launch the terminal UI",
	Long:  "Launch the chatsync terminal user interface. This is the default command.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args...)
	},
}

func runTUI(cmd *cobra.Command, args ...string) error {
	if IsNonInteractive() {
		return &PreflightError{
			Message:  "TUI requires an interactive terminal",
			Hint:     "Run without --non-interactive and with a TTY, or use CLI subcommands",
			NextStep: "chatsync watch",
		}
	}

	cfg := GetConfig()
	store := prefs.New(cfg.PrefsPath())
	if err := store.Load(); err != nil {
		// A corrupt prefs file must not keep the UI from starting.
		log := logger()
		log.Warn().Err(err).Str("path", store.Path()).Msg("failed to load preferences")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log := logger()
			log.Warn().Err(err).Msg("failed to save preferences")
		}
	}()

	explicit := ""
	if len(args) > 0 {
		explicit = args[0]
	}

	ctx := cmd.Context()
	sess, err := startSession(ctx, cfg, initialConversation(cfg, explicit, store.LastConversation()))
	if err != nil {
		return err
	}
	defer sess.Close()

	theme := store.Theme()
	if theme == "" {
		theme = cfg.TUI.Theme
	}
	return chattui.Run(ctx, sess.engine, store, chattui.Config{
		Theme:           theme,
		RefreshInterval: cfg.TUI.RefreshInterval,
	})
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
