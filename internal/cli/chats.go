package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/chatsync/internal/followup"
	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/models"
)

func init() {
	rootCmd.AddCommand(chatsCmd)
}

var chatsCmd = &cobra.Command{
	Use:     "chats",
	Aliases: []string{"ls"},
	Short:   "List conversations",
	Long:    "List the host's conversations, most recent activity first, with follow-up and takeover state.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Host.RequestTimeout)
		defer cancel()

		client := newHostClient(cfg, nil)
		defer client.Close()
		if err := connect(ctx, client, cfg.Host.Addr); err != nil {
			return err
		}

		snap, err := fetchOverview(ctx, client)
		if err != nil {
			return err
		}
		rows := snap.rows(time.Now())

		if IsJSONOutput() {
			return WriteOutput(os.Stdout, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stdout, "No conversations")
			return nil
		}
		if err := writeChatTable(rows, time.Now()); err != nil {
			return err
		}
		PrintNextSteps(HintContext{Action: "chats"})
		return nil
	},
}

// ChatRow is one line of `chatsync chats`.
type ChatRow struct {
	models.Conversation
	FollowUps    int            `json:"followUps"`
	NextFollowUp *time.Time     `json:"nextFollowUp,omitempty"`
	State        followup.State `json:"followUpState"`
	Takeover     bool           `json:"takeover"`
}

// overview is one consistent-enough read of the host for list commands.
type overview struct {
	chats         []models.Conversation
	interventions []models.InterventionState
	followUps     []models.FollowUp
}

func fetchOverview(ctx context.Context, client *host.Client) (overview, error) {
	var snap overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		chats, err := client.Chats(gctx)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		snap.chats = chats
		return nil
	})
	g.Go(func() error {
		ivs, err := client.Interventions(gctx)
		if err != nil {
			return fmt.Errorf("failed to list interventions: %w", err)
		}
		snap.interventions = ivs
		return nil
	})
	g.Go(func() error {
		fus, err := client.ActiveFollowUps(gctx)
		if err != nil {
			return fmt.Errorf("failed to list follow-ups: %w", err)
		}
		snap.followUps = fus
		return nil
	})
	if err := g.Wait(); err != nil {
		return overview{}, err
	}
	return snap, nil
}

func (o overview) rows(now time.Time) []ChatRow {
	board := followup.NewBoard()
	board.ApplyAll(o.followUps, now)

	takeover := make(map[string]bool, len(o.interventions))
	for _, iv := range o.interventions {
		takeover[iv.ConversationID] = iv.Active
	}

	rows := make([]ChatRow, 0, len(o.chats))
	for _, c := range o.chats {
		row := ChatRow{
			Conversation: c,
			State:        board.State(c.ID),
			Takeover:     takeover[c.ID],
		}
		if sched, ok := board.Lookup(c.ID); ok {
			fus := sched.FollowUps()
			row.FollowUps = len(fus)
			if len(fus) > 0 {
				at := fus[0].ScheduledAt
				row.NextFollowUp = &at
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func writeChatTable(rows []ChatRow, now time.Time) error {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		next := "-"
		if r.NextFollowUp != nil {
			next = formatIn(followup.Remaining(*r.NextFollowUp, now))
		}
		table = append(table, []string{
			r.ID,
			truncateCell(r.Name, 24),
			formatYesNo(r.IsGroup),
			formatAgo(r.LastActivity, now),
			fmt.Sprintf("%d", r.FollowUps),
			next,
			formatYesNo(r.Takeover),
			truncateCell(r.LastMessagePreview, previewWidth),
		})
	}
	return writeTable(os.Stdout, []string{"ID", "NAME", "GROUP", "ACTIVE", "FOLLOW-UPS", "NEXT", "TAKEOVER", "LAST MESSAGE"}, table)
}
