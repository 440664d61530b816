package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/chatsync/internal/engine"
)

var (
	watchCount      int
	watchNoTimeline bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVar(&watchCount, "count", 0, "exit after this many snapshots (0 = until interrupted)")
	watchCmd.Flags().BoolVar(&watchNoTimeline, "no-timeline", false, "omit the selected conversation's timeline")
}

var watchCmd = &cobra.Command{
	Use:   "watch [conversation]",
	Short: "Stream view snapshots as JSON lines",
	Long: `Run the sync engine without a UI and write one JSON object per view
change to stdout. Pass a conversation to select it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		explicit := ""
		if len(args) > 0 {
			explicit = args[0]
		}
		cfg := GetConfig()
		sess, err := startSession(ctx, cfg, initialConversation(cfg, explicit, ""))
		if err != nil {
			return err
		}
		defer sess.Close()

		streamer := NewViewStreamer(os.Stdout, StreamConfig{
			Count:      watchCount,
			NoTimeline: watchNoTimeline,
		})
		return streamer.Stream(ctx, sess.engine)
	},
}

// ViewSource is anything that publishes engine views.
type ViewSource interface {
	Snapshot() engine.View
	OnChange(fn func(engine.View))
}

// StreamConfig configures view streaming.
type StreamConfig struct {
	// Count stops the stream after this many snapshots. Zero streams until
	// the context ends.
	Count int

	// NoTimeline drops timeline entries from each snapshot.
	NoTimeline bool
}

// ViewStreamer writes engine views to an output writer in JSONL format.
type ViewStreamer struct {
	out    io.Writer
	config StreamConfig
}

// NewViewStreamer creates a new view streamer.
func NewViewStreamer(out io.Writer, config StreamConfig) *ViewStreamer {
	return &ViewStreamer{out: out, config: config}
}

// Stream writes the current view and then every change until the context
// ends or Count views were written. Changes that arrive while a line is
// being written collapse into the latest view.
func (s *ViewStreamer) Stream(ctx context.Context, src ViewSource) error {
	changed := make(chan engine.View, 1)
	src.OnChange(func(v engine.View) {
		// Runs on the engine loop; never block it.
		select {
		case changed <- v:
		default:
			select {
			case <-changed:
			default:
			}
			select {
			case changed <- v:
			default:
			}
		}
	})

	written := 0
	emit := func(v engine.View) (bool, error) {
		if err := s.writeView(v); err != nil {
			return false, fmt.Errorf("failed to write view: %w", err)
		}
		written++
		return s.config.Count > 0 && written >= s.config.Count, nil
	}

	if done, err := emit(src.Snapshot()); err != nil || done {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-changed:
			if done, err := emit(v); err != nil || done {
				return err
			}
		}
	}
}

// writeView writes a single view as JSONL.
func (s *ViewStreamer) writeView(v engine.View) error {
	if s.config.NoTimeline {
		v.Timeline = nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(data))
	return err
}
