package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/chatsync/internal/config"
	"github.com/tOgg1/chatsync/internal/engine"
	"github.com/tOgg1/chatsync/internal/followup"
	"github.com/tOgg1/chatsync/internal/models"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestWriteTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, []string{"ID", "NAME"}, [][]string{
		{"a@c.us", "Alice"},
		{"family@g.us", "\x1b[1mFamily\x1b[0m"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "ID           NAME", lines[0])
	require.Equal(t, "a@c.us       Alice", lines[1])
	require.Equal(t, "family@g.us  Family", stripANSI(lines[2]))
}

func TestFormatIn(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "due"},
		{0, "due"},
		{12 * time.Second, "12s"},
		{4*time.Minute + 9*time.Second, "4m 09s"},
		{time.Hour + 5*time.Minute + 30*time.Second, "1h 05m"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatIn(tt.in), "formatIn(%v)", tt.in)
	}
}

func TestFormatAgo(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "-"},
		{t0.Add(-10 * time.Second), "just now"},
		{t0.Add(-5 * time.Minute), "5m ago"},
		{t0.Add(-3 * time.Hour), "3h ago"},
		{t0.Add(-50 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatAgo(tt.at, t0))
	}
}

func TestTruncateCell(t *testing.T) {
	require.Equal(t, "short", truncateCell("short", 10))
	require.Equal(t, "two lines", truncateCell("two\nlines", 20))

	got := truncateCell("a rather long message body", 10)
	require.True(t, strings.HasSuffix(got, "…"))
	require.LessOrEqual(t, len([]rune(got)), 10)
}

func TestFollowUpRowsOrderAndFilter(t *testing.T) {
	fus := []models.FollowUp{
		{ID: "b2", ConversationID: "B", ScheduledAt: t0.Add(time.Hour), Text: "second"},
		{ID: "a1", ConversationID: "A", ScheduledAt: t0.Add(time.Minute), Text: "only"},
		{ID: "b1", ConversationID: "B", ScheduledAt: t0.Add(10 * time.Minute), Text: "first"},
	}

	rows := followUpRows(followup.NewBoard(), fus, "", t0)
	require.Len(t, rows, 3)
	require.Equal(t, "a1", rows[0].ID)
	require.Equal(t, "b1", rows[1].ID)
	require.Equal(t, 1, rows[1].Index)
	require.Equal(t, 2, rows[1].Total)
	require.Equal(t, 10*time.Minute, rows[1].Remaining)
	require.Equal(t, "b2", rows[2].ID)
	require.Equal(t, 2, rows[2].Index)

	rows = followUpRows(followup.NewBoard(), fus, "A", t0)
	require.Len(t, rows, 1)
	require.Equal(t, "a1", rows[0].ID)
}

func TestFollowUpSummary(t *testing.T) {
	board := followup.NewBoard()
	board.ApplyAll([]models.FollowUp{{ID: "a1", ConversationID: "A", ScheduledAt: t0.Add(time.Minute)}}, t0)
	require.Equal(t, "1 follow-up in 1 conversation", followUpSummary(board))

	board.ApplyAll([]models.FollowUp{
		{ID: "a1", ConversationID: "A", ScheduledAt: t0.Add(time.Minute)},
		{ID: "b1", ConversationID: "B", ScheduledAt: t0.Add(time.Hour)},
		{ID: "b2", ConversationID: "B", ScheduledAt: t0.Add(2 * time.Hour)},
	}, t0)
	require.Equal(t, "3 follow-ups across 2 conversations", followUpSummary(board))
}

func TestOverviewRows(t *testing.T) {
	chats := []models.Conversation{
		{ID: "A", Name: "Alice", LastActivity: t0.Add(-time.Minute)},
		{ID: "B", Name: "Bob"},
	}
	fus := []models.FollowUp{
		{ID: "f2", ConversationID: "A", ScheduledAt: t0.Add(2 * time.Hour)},
		{ID: "f1", ConversationID: "A", ScheduledAt: t0.Add(time.Hour)},
	}
	ivs := []models.InterventionState{{ConversationID: "B", Active: true, Manual: true}}
	snap := overview{chats: chats, interventions: ivs, followUps: fus}

	rows := snap.rows(t0)
	require.Len(t, rows, 2)

	require.Equal(t, 2, rows[0].FollowUps)
	require.Equal(t, followup.StateScheduled, rows[0].State)
	require.NotNil(t, rows[0].NextFollowUp)
	require.Equal(t, t0.Add(time.Hour), *rows[0].NextFollowUp)
	require.False(t, rows[0].Takeover)

	require.Zero(t, rows[1].FollowUps)
	require.Nil(t, rows[1].NextFollowUp)
	require.Equal(t, followup.StateNone, rows[1].State)
	require.True(t, rows[1].Takeover)
}

type fakeSource struct {
	mu         sync.Mutex
	view       engine.View
	listener   func(engine.View)
	registered chan struct{}
}

func (f *fakeSource) Snapshot() engine.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeSource) OnChange(fn func(engine.View)) {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
	close(f.registered)
}

func (f *fakeSource) emit(v engine.View) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	fn(v)
}

func TestViewStreamerWritesJSONLines(t *testing.T) {
	src := &fakeSource{
		view:       engine.View{Now: t0, Connection: models.ConnectionOpen},
		registered: make(chan struct{}),
	}

	var buf bytes.Buffer
	streamer := NewViewStreamer(&buf, StreamConfig{Count: 2, NoTimeline: true})

	done := make(chan error, 1)
	go func() {
		done <- streamer.Stream(context.Background(), src)
	}()

	<-src.registered
	src.emit(engine.View{Now: t0.Add(time.Second), Selected: "A"})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after two views")
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "open", lines[0]["connection"])
	require.Equal(t, "A", lines[1]["selected"])
	require.NotContains(t, lines[1], "timeline")
}

func TestViewStreamerStopsOnCancel(t *testing.T) {
	src := &fakeSource{registered: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- NewViewStreamer(&buf, StreamConfig{}).Stream(ctx, src)
	}()

	<-src.registered
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestCommandSurfaceListsCommands(t *testing.T) {
	data, err := CommandSurfaceJSON()
	require.NoError(t, err)

	var manifest SurfaceManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Equal(t, "chatsync", manifest.CLI)

	var names []string
	for _, c := range manifest.Commands {
		names = append(names, c.Name)
	}
	for _, want := range []string{"chats", "follow-ups", "tui", "use", "version", "watch"} {
		require.Contains(t, names, want)
	}
	require.NotContains(t, names, "surface")

	var global []string
	for _, f := range manifest.GlobalFlags {
		global = append(global, f.Long)
	}
	require.Subset(t, global, []string{"config", "host-addr", "log-level", "json"})
}

func TestInitialConversationPrecedence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Global.ConfigDir = t.TempDir()
	cfg.Host.Addr = "/tmp/chatsync.sock"

	require.Equal(t, "remembered", initialConversation(cfg, "", "remembered"))

	store := config.NewContextStore(contextPath(cfg))
	ctx := &config.Context{}
	ctx.SetConversation("ctx-conv", "Ctx", cfg.Host.Addr)
	require.NoError(t, store.Save(ctx))
	require.Equal(t, filepath.Join(cfg.Global.ConfigDir, "context.yaml"), store.Path())

	require.Equal(t, "ctx-conv", initialConversation(cfg, "", "remembered"))
	require.Equal(t, "explicit", initialConversation(cfg, "explicit", "remembered"))

	cfg.Host.Addr = "/tmp/other.sock"
	require.Equal(t, "remembered", initialConversation(cfg, "", "remembered"))
}

func TestPreflightErrorDetail(t *testing.T) {
	err := &PreflightError{Message: "no host", Hint: "start one", NextStep: "chatsync-host"}
	require.Equal(t, "no host", err.Error())
	require.Equal(t, "Error: no host\nHint: start one\nTry: chatsync-host", err.Detail())
}

func TestHasRobotHelpFlag(t *testing.T) {
	require.True(t, hasRobotHelpFlag([]string{"chats", "--robot-help"}))
	require.False(t, hasRobotHelpFlag([]string{"--", "--robot-help"}))
	require.False(t, hasRobotHelpFlag(nil))

	var buf bytes.Buffer
	printRobotHelp(&buf)
	require.Contains(t, buf.String(), "chatsync watch")
}

func TestVersionInfoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, VersionInfo{Version: "1.2.3", Commit: "abc"}))
	require.Contains(t, buf.String(), `"version": "1.2.3"`)
}
