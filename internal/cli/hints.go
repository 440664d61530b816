package cli

import (
	"fmt"
	"os"
)

// HintContext provides context for generating relevant next steps.
type HintContext struct {
	// Action is the command that was executed (e.g., "use", "chats").
	Action string

	// ConversationID is the conversation involved (if any).
	ConversationID string

	// ConversationName is the display name (for display).
	ConversationName string
}

// PrintNextSteps prints contextual next steps after a successful command.
// Does nothing if JSON output is enabled.
func PrintNextSteps(ctx HintContext) {
	if IsJSONOutput() {
		return
	}

	hints := generateHints(ctx)
	if len(hints) == 0 {
		return
	}

	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, "Next steps:")
	for _, hint := range hints {
		fmt.Fprintf(os.Stdout, "  %s\n", hint)
	}
}

// generateHints generates context-aware hints for the given action.
func generateHints(ctx HintContext) []string {
	switch ctx.Action {
	case "use":
		return hintsForUse(ctx)
	case "chats":
		return []string{
			"chatsync use <conversation>          # Pick a conversation",
			"chatsync follow-ups                  # List scheduled follow-ups",
		}
	default:
		return nil
	}
}

func hintsForUse(ctx HintContext) []string {
	if ctx.ConversationID == "" {
		return nil
	}
	return []string{
		"chatsync                             # Open it in the TUI",
		fmt.Sprintf("chatsync follow-ups %s   # Its follow-ups", ctx.ConversationID),
		"chatsync watch --no-timeline         # Stream its state as JSON",
	}
}
