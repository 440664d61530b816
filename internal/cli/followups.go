package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/chatsync/internal/followup"
	"github.com/tOgg1/chatsync/internal/models"
)

func init() {
	rootCmd.AddCommand(followUpsCmd)
}

var followUpsCmd = &cobra.Command{
	Use:     "follow-ups [conversation]",
	Aliases: []string{"fu"},
	Short:   "List scheduled follow-ups",
	Long: `List pending follow-ups with their position in the conversation's
sequence and the time until they send. Pass a conversation id to filter.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Host.RequestTimeout)
		defer cancel()

		client := newHostClient(cfg, nil)
		defer client.Close()
		if err := connect(ctx, client, cfg.Host.Addr); err != nil {
			return err
		}

		fus, err := client.ActiveFollowUps(ctx)
		if err != nil {
			return fmt.Errorf("failed to list follow-ups: %w", err)
		}

		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}
		board := followup.NewBoard()
		rows := followUpRows(board, fus, filter, time.Now())

		if IsJSONOutput() {
			return WriteOutput(os.Stdout, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stdout, "No follow-ups scheduled")
			return nil
		}

		table := make([][]string, 0, len(rows))
		for _, r := range rows {
			table = append(table, []string{
				r.ConversationID,
				r.ID,
				fmt.Sprintf("%d/%d", r.Index, r.Total),
				r.ScheduledAt.Local().Format("Jan 2 15:04"),
				formatIn(r.Remaining),
				truncateCell(r.Text, previewWidth),
			})
		}
		if err := writeTable(os.Stdout, []string{"CONVERSATION", "ID", "#", "AT", "IN", "MESSAGE"}, table); err != nil {
			return err
		}
		if filter == "" {
			fmt.Fprintln(os.Stdout)
			fmt.Fprintln(os.Stdout, followUpSummary(board))
		}
		return nil
	},
}

func followUpSummary(board *followup.Board) string {
	total, convs := board.Total(), len(board.Active())
	noun := "follow-ups"
	if total == 1 {
		noun = "follow-up"
	}
	if convs == 1 {
		return fmt.Sprintf("%d %s in 1 conversation", total, noun)
	}
	return fmt.Sprintf("%d %s across %d conversations", total, noun, convs)
}

// FollowUpRow is one line of `chatsync follow-ups`.
type FollowUpRow struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Index          int           `json:"index"`
	Total          int           `json:"total"`
	ScheduledAt    time.Time     `json:"scheduledAt"`
	Remaining      time.Duration `json:"remainingNs"`
	Text           string        `json:"message"`
}

// followUpRows orders follow-ups by conversation, then by send time, with
// each one's position in its conversation's sequence.
func followUpRows(board *followup.Board, fus []models.FollowUp, conversationID string, now time.Time) []FollowUpRow {
	board.ApplyAll(fus, now)

	var rows []FollowUpRow
	for _, id := range board.Active() {
		if conversationID != "" && id != conversationID {
			continue
		}
		sched, ok := board.Lookup(id)
		if !ok {
			continue
		}
		for _, e := range sched.Entries(now) {
			rows = append(rows, FollowUpRow{
				ID:             e.FollowUp.ID,
				ConversationID: id,
				Index:          e.Index,
				Total:          e.Total,
				ScheduledAt:    e.FollowUp.ScheduledAt,
				Remaining:      e.Remaining,
				Text:           e.FollowUp.Text,
			})
		}
	}
	return rows
}
