package chattui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/chatsync/internal/engine"
	"github.com/tOgg1/chatsync/internal/followup"
	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/timeline"
)

type fakeEngine struct {
	view      engine.View
	listeners []func(engine.View)
	calls     []string
	err       error
}

func (f *fakeEngine) Snapshot() engine.View {
	return f.view
}

func (f *fakeEngine) OnChange(fn func(engine.View)) {
	f.listeners = append(f.listeners, fn)
}

func (f *fakeEngine) Select(id string) {
	f.calls = append(f.calls, "select:"+id)
}

func (f *fakeEngine) Refresh() {
	f.calls = append(f.calls, "refresh")
}

func (f *fakeEngine) CheckNow(id string) error {
	return f.record("check:" + id)
}

func (f *fakeEngine) ToggleAI(id string) error {
	return f.record("ai:" + id)
}

func (f *fakeEngine) ToggleIntervention(id string) error {
	return f.record("intervention:" + id)
}

func (f *fakeEngine) CancelAllFollowUps(id string) error {
	return f.record("cancel-all:" + id)
}

func (f *fakeEngine) ClearConversation(id string) error {
	return f.record("clear:" + id)
}

func (f *fakeEngine) CancelFollowUp(id, fu string) error {
	return f.record("cancel:" + id + ":" + fu)
}

func (f *fakeEngine) SendFollowUpNow(id, fu string) error {
	return f.record("send-now:" + id + ":" + fu)
}

func (f *fakeEngine) SendMessage(id, body string) error {
	if strings.TrimSpace(body) == "" {
		return models.ErrEmptyMessage
	}
	return f.record("send:" + id + ":" + body)
}

func (f *fakeEngine) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

type memPrefs struct {
	last     string
	theme    string
	relative bool
	drafts   map[string]string
}

func (p *memPrefs) SetLastConversation(id string) {
	p.last = id
}

func (p *memPrefs) Theme() string {
	return p.theme
}

func (p *memPrefs) SetTheme(theme string) {
	p.theme = theme
}

func (p *memPrefs) RelativeTime() bool {
	return p.relative
}

func (p *memPrefs) SetRelativeTime(on bool) {
	p.relative = on
}

func (p *memPrefs) Draft(id string) (string, bool) {
	d, ok := p.drafts[id]
	return d, ok
}

func (p *memPrefs) SetDraft(id, body string) {
	if p.drafts == nil {
		p.drafts = make(map[string]string)
	}
	if strings.TrimSpace(body) == "" {
		delete(p.drafts, id)
		return
	}
	p.drafts[id] = body
}

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func sampleView() engine.View {
	return engine.View{
		Now:        now,
		Connection: models.ConnectionOpen,
		Conversations: []engine.ConversationRow{
			{Conversation: models.Conversation{ID: "A", Name: "Alice", LastMessagePreview: "see you"}},
			{
				Conversation:     models.Conversation{ID: "B", Name: "Bob"},
				FollowUpState:    followup.StateScheduled,
				PendingFollowUps: 1,
				NextFollowUpIn:   59 * time.Minute,
			},
		},
		Selected: "A",
		Timeline: []timeline.Entry{
			{Kind: timeline.EntrySeparator, Label: "Today"},
			{
				Kind:  timeline.EntryMessage,
				Label: "11:58",
				Message: models.Message{
					ID:        "m1",
					Content:   models.Content{Kind: models.ContentText, Text: "hello there"},
					Timestamp: fn.Some(now.Add(-2 * time.Minute)),
				},
				Highlighted: true,
			},
		},
		FollowUpState: followup.StateScheduled,
		FollowUps: []followup.Entry{{
			FollowUp:  models.FollowUp{ID: "f1", ConversationID: "A", Text: "Just checking in", ScheduledAt: now.Add(time.Hour)},
			Index:     1,
			Total:     1,
			Remaining: time.Hour,
		}},
		AI: &models.AIModeStatus{ConversationID: "A", Active: true, CanToggle: true},
		Notifications: []models.Notification{{
			Identity: models.NotificationIdentity{ConversationID: "A", Category: models.CategoryManualCheck, Outcome: "scheduled"},
			Severity: models.SeveritySuccess,
			Text:     "Follow-up scheduled",
		}},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(model)
	}
	return m
}

func TestModeKeysCallEngine(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	m := newModel(eng, &memPrefs{}, Config{})

	m = press(t, m, "a", "i", "c", "s")
	require.Equal(t, []string{"ai:A", "intervention:A", "check:A", "send-now:A:f1"}, eng.calls)
}

func TestMovingCursorSelectsAndRemembers(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	prefs := &memPrefs{}
	m := newModel(eng, prefs, Config{})
	require.Equal(t, 0, m.cursor)

	m = press(t, m, "j")
	require.Equal(t, []string{"select:B"}, eng.calls)
	require.Equal(t, "B", prefs.last)

	m = press(t, m, "j")
	require.Len(t, eng.calls, 1, "already at the end")
}

func TestCancelFollowUpNeedsConfirmation(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	m := newModel(eng, &memPrefs{}, Config{})

	m = press(t, m, "x")
	require.Equal(t, modeConfirm, m.mode)
	require.Empty(t, eng.calls)

	m = press(t, m, "n")
	require.Equal(t, modeMain, m.mode)
	require.Empty(t, eng.calls)

	m = press(t, m, "x", "y")
	require.Equal(t, []string{"cancel:A:f1"}, eng.calls)

	m = press(t, m, "X", "y", "D", "y")
	require.Equal(t, []string{"cancel:A:f1", "cancel-all:A", "clear:A"}, eng.calls)
}

func TestComposeSendsAndKeepsDrafts(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	prefs := &memPrefs{}
	m := newModel(eng, prefs, Config{})

	m = press(t, m, "m", "h", "i", "x", "backspace", "esc")
	require.Equal(t, modeMain, m.mode)
	require.Equal(t, map[string]string{"A": "hi"}, prefs.drafts)

	m = press(t, m, "m")
	require.Equal(t, "hi", m.compose)
	m = press(t, m, "enter")
	require.Equal(t, []string{"send:A:hi"}, eng.calls)
	require.Empty(t, prefs.drafts)
}

func TestComposeEmptyShowsValidationError(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	m := newModel(eng, &memPrefs{}, Config{})

	m = press(t, m, "m", "enter")
	require.Equal(t, modeCompose, m.mode)
	require.Equal(t, statusErr, m.statusKind)
	require.Contains(t, m.statusText, "empty")
}

func TestChangeNotificationRefreshesView(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	m := newModel(eng, &memPrefs{}, Config{})
	require.Len(t, eng.listeners, 1)

	next := sampleView()
	next.Selected = "B"
	eng.view = next
	eng.listeners[0](next)

	msg := m.waitForChangeCmd()()
	require.IsType(t, changedMsg{}, msg)
	updated, _ := m.Update(msg)
	m = updated.(model)
	require.Equal(t, "B", m.view.Selected)
	require.Equal(t, 1, m.cursor)
}

func TestThemeAndRelativeTimePersist(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	prefs := &memPrefs{theme: "light"}
	m := newModel(eng, prefs, Config{Theme: "default"})
	require.Equal(t, "light", m.palette.Name)

	m = press(t, m, "t", "T")
	require.Equal(t, "default", prefs.theme)
	require.True(t, prefs.relative)
	require.True(t, m.relative)
}

func TestViewRendersSelection(t *testing.T) {
	eng := &fakeEngine{view: sampleView()}
	m := newModel(eng, &memPrefs{relative: true}, Config{})
	m.width, m.height = 120, 30

	out := m.View()
	for _, want := range []string{"Alice", "Bob", "Today", "hello there", "1/1 in 1h 00m", "AI: on", "Follow-up scheduled"} {
		require.Contains(t, out, want)
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: -time.Second, want: "0s"},
		{in: 12 * time.Second, want: "12s"},
		{in: 4*time.Minute + 9*time.Second, want: "4m 09s"},
		{in: time.Hour + 5*time.Minute + 30*time.Second, want: "1h 05m"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, formatCountdown(tc.in), tc.in.String())
	}
}

func TestTruncateLine(t *testing.T) {
	require.Equal(t, "hello", truncateLine("hello", 10))
	require.Equal(t, "hello w...", truncateLine("hello world again", 10))
	require.Equal(t, "", truncateLine("hello", 0))
}
