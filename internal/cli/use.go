package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/chatsync/internal/config"
)

var useClear bool

func init() {
	rootCmd.AddCommand(useCmd)
	useCmd.Flags().BoolVar(&useClear, "clear", false, "clear the current conversation")
}

var useCmd = &cobra.Command{
	Use:   "use [conversation]",
	Short: "Show or set the current conversation",
	Long: `Set the conversation that the TUI and watch open with.

The conversation can be given by id or by exact (case-insensitive) name.
Without arguments, the current context is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store := config.NewContextStore(contextPath(cfg))

		current, err := store.Load()
		if err != nil {
			return err
		}

		if useClear {
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "Context cleared")
			return nil
		}

		if len(args) == 0 {
			if IsJSONOutput() {
				return WriteOutput(os.Stdout, current)
			}
			fmt.Fprintln(os.Stdout, current.String())
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Host.RequestTimeout)
		defer cancel()
		id, name, err := resolveConversation(ctx, cfg, args[0])
		if err != nil {
			return err
		}

		current.SetConversation(id, name, cfg.Host.Addr)
		if err := store.Save(current); err != nil {
			return err
		}
		if IsJSONOutput() {
			return WriteOutput(os.Stdout, current)
		}
		fmt.Fprintf(os.Stdout, "Now using %s\n", current.String())
		PrintNextSteps(HintContext{Action: "use", ConversationID: id, ConversationName: name})
		return nil
	},
}

// contextPath keeps the context file next to the config file.
func contextPath(cfg *config.Config) string {
	if cfg == nil || cfg.Global.ConfigDir == "" {
		return ""
	}
	return filepath.Join(cfg.Global.ConfigDir, "context.yaml")
}

// resolveConversation matches ref against the host's conversation list.
func resolveConversation(ctx context.Context, cfg *config.Config, ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("conversation is required")
	}

	client := newHostClient(cfg, nil)
	defer client.Close()
	if err := connect(ctx, client, cfg.Host.Addr); err != nil {
		return "", "", err
	}
	convs, err := client.Chats(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to list conversations: %w", err)
	}

	var matches []string
	for _, c := range convs {
		if c.ID == ref {
			return c.ID, c.Name, nil
		}
		if strings.EqualFold(c.Name, ref) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("conversation %q not found", ref)
	case 1:
		for _, c := range convs {
			if c.ID == matches[0] {
				return c.ID, c.Name, nil
			}
		}
	}
	return "", "", fmt.Errorf("conversation name %q is ambiguous (%s)", ref, strings.Join(matches, ", "))
}
