// Package chattui is the terminal front end of the sync engine.
package chattui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/chatsync/internal/engine"
)

const (
	defaultRefreshInterval = 500 * time.Millisecond
	defaultStatusTTL       = 5 * time.Second

	minWindowWidth  = 80
	minWindowHeight = 20
)

// Engine is the part of the sync engine the TUI drives.
type Engine interface {
	Snapshot() engine.View
	OnChange(fn func(engine.View))
	Select(conversationID string)
	Refresh()

	CancelFollowUp(conversationID, followUpID string) error
	SendFollowUpNow(conversationID, followUpID string) error
	CancelAllFollowUps(conversationID string) error
	CheckNow(conversationID string) error
	ToggleAI(conversationID string) error
	ToggleIntervention(conversationID string) error
	SendMessage(conversationID, body string) error
	ClearConversation(conversationID string) error
}

// Prefs persists UI preferences. *prefs.Store implements it.
type Prefs interface {
	SetLastConversation(id string)
	Theme() string
	SetTheme(theme string)
	RelativeTime() bool
	SetRelativeTime(on bool)
	Draft(conversationID string) (string, bool)
	SetDraft(conversationID, body string)
}

// Config controls TUI behavior.
type Config struct {
	Theme           string
	RefreshInterval time.Duration
}

// Run starts the TUI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, eng Engine, prefs Prefs, cfg Config) error {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	m := newModel(eng, prefs, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type uiMode int

const (
	modeMain uiMode = iota
	modeCompose
	modeConfirm
	modeHelp
)

type pane int

const (
	paneConversations pane = iota
	paneFollowUps
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusErr
)

type confirmAction int

const (
	confirmCancelFollowUp confirmAction = iota
	confirmCancelAll
	confirmClear
)

type confirmState struct {
	action         confirmAction
	conversationID string
	followUpID     string
	prompt         string
}

type model struct {
	eng     Engine
	prefs   Prefs
	cfg     Config
	palette palette

	view     engine.View
	changed  chan struct{}
	relative bool

	mode         uiMode
	focus        pane
	cursor       int
	followCursor int
	compose      string
	confirm      *confirmState

	statusText    string
	statusKind    statusKind
	statusExpires time.Time

	width    int
	height   int
	quitting bool
}

type changedMsg struct{}

type tickMsg struct{}

func newModel(eng Engine, prefs Prefs, cfg Config) model {
	theme := cfg.Theme
	relative := false
	if prefs != nil {
		if saved := prefs.Theme(); saved != "" {
			theme = saved
		}
		relative = prefs.RelativeTime()
	}

	// The engine notifies on its own loop; a one-slot channel coalesces
	// bursts so the loop never blocks on the UI.
	changed := make(chan struct{}, 1)
	eng.OnChange(func(engine.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	m := model{
		eng:      eng,
		prefs:    prefs,
		cfg:      cfg,
		palette:  resolvePalette(theme),
		view:     eng.Snapshot(),
		changed:  changed,
		relative: relative,
	}
	m.syncCursor()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForChangeCmd(), m.tickCmd())
}

func (m model) waitForChangeCmd() tea.Cmd {
	ch := m.changed
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m model) tickCmd() tea.Cmd {
	interval := m.cfg.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case changedMsg:
		m.view = m.eng.Snapshot()
		m.clampCursors()
		return m, m.waitForChangeCmd()
	case tickMsg:
		if !m.statusExpires.IsZero() && time.Now().After(m.statusExpires) {
			m.statusText = ""
			m.statusExpires = time.Time{}
		}
		m.view = m.eng.Snapshot()
		m.clampCursors()
		return m, m.tickCmd()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		switch m.mode {
		case modeCompose:
			return m.updateComposeMode(msg)
		case modeConfirm:
			return m.updateConfirmMode(msg)
		case modeHelp:
			return m.updateHelpMode(msg)
		default:
			return m.updateMainMode(msg)
		}
	}
	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

func (m model) updateMainMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected := m.view.Selected
	switch msg.String() {
	case "q":
		return m.quit()
	case "?":
		m.mode = modeHelp
	case "tab":
		if m.focus == paneConversations && selected != "" {
			m.focus = paneFollowUps
		} else {
			m.focus = paneConversations
		}
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.moveCursor(-len(m.view.Conversations))
	case "G", "end":
		m.moveCursor(len(m.view.Conversations))
	case "r":
		m.eng.Refresh()
		m.setStatus(statusInfo, "Refreshing")
	case "t":
		m.palette = cyclePalette(m.palette.Name, 1)
		if m.prefs != nil {
			m.prefs.SetTheme(m.palette.Name)
		}
	case "T":
		m.relative = !m.relative
		if m.prefs != nil {
			m.prefs.SetRelativeTime(m.relative)
		}
	case "a":
		m.run(m.eng.ToggleAI(selected))
	case "i":
		m.run(m.eng.ToggleIntervention(selected))
	case "c":
		m.run(m.eng.CheckNow(selected))
	case "s":
		if id, ok := m.selectedFollowUpID(); ok {
			m.run(m.eng.SendFollowUpNow(selected, id))
		}
	case "x":
		if id, ok := m.selectedFollowUpID(); ok {
			m.askConfirm(confirmCancelFollowUp, selected, id, "Cancel this follow-up?")
		}
	case "X":
		if selected != "" && len(m.view.FollowUps) > 0 {
			m.askConfirm(confirmCancelAll, selected, "", "Cancel all follow-ups for this conversation?")
		}
	case "D":
		if selected != "" {
			m.askConfirm(confirmClear, selected, "", "Clear this conversation's history?")
		}
	case "enter", "m":
		if selected != "" {
			m.mode = modeCompose
			m.compose = ""
			if m.prefs != nil {
				if draft, ok := m.prefs.Draft(selected); ok {
					m.compose = draft
				}
			}
		}
	}
	return m, nil
}

func (m model) updateComposeMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected := m.view.Selected
	switch msg.Type {
	case tea.KeyEsc:
		m.saveDraft(selected)
		m.mode = modeMain
	case tea.KeyEnter:
		if err := m.eng.SendMessage(selected, m.compose); err != nil {
			m.setStatus(statusErr, err.Error())
			return m, nil
		}
		m.compose = ""
		m.saveDraft(selected)
		m.mode = modeMain
	case tea.KeyBackspace:
		m.compose = removeLastRune(m.compose)
	case tea.KeySpace:
		m.compose += " "
	case tea.KeyRunes:
		m.compose += string(msg.Runes)
	}
	return m, nil
}

func (m model) updateConfirmMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		c := m.confirm
		m.confirm = nil
		m.mode = modeMain
		if c == nil {
			return m, nil
		}
		switch c.action {
		case confirmCancelFollowUp:
			m.run(m.eng.CancelFollowUp(c.conversationID, c.followUpID))
		case confirmCancelAll:
			m.run(m.eng.CancelAllFollowUps(c.conversationID))
		case confirmClear:
			m.run(m.eng.ClearConversation(c.conversationID))
		}
	case "n", "N", "esc", "q":
		m.confirm = nil
		m.mode = modeMain
	}
	return m, nil
}

func (m model) updateHelpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "?", "esc", "q", "enter":
		m.mode = modeMain
	}
	return m, nil
}

func (m *model) askConfirm(action confirmAction, conversationID, followUpID, prompt string) {
	m.confirm = &confirmState{
		action:         action,
		conversationID: conversationID,
		followUpID:     followUpID,
		prompt:         prompt,
	}
	m.mode = modeConfirm
}

// run surfaces synchronous validation errors. Host outcomes arrive as
// notifications in the view.
func (m *model) run(err error) {
	if err != nil {
		m.setStatus(statusErr, err.Error())
	}
}

func (m *model) saveDraft(conversationID string) {
	if m.prefs != nil && conversationID != "" {
		m.prefs.SetDraft(conversationID, m.compose)
	}
}

func (m *model) moveCursor(delta int) {
	if m.focus == paneFollowUps {
		m.followCursor = clamp(m.followCursor+delta, 0, len(m.view.FollowUps)-1)
		return
	}
	if len(m.view.Conversations) == 0 {
		return
	}
	next := clamp(m.cursor+delta, 0, len(m.view.Conversations)-1)
	if next == m.cursor && m.view.Conversations[next].ID == m.view.Selected {
		return
	}
	m.cursor = next
	id := m.view.Conversations[next].ID
	m.view.Selected = id
	m.followCursor = 0
	m.eng.Select(id)
	if m.prefs != nil {
		m.prefs.SetLastConversation(id)
	}
}

func (m model) selectedFollowUpID() (string, bool) {
	if m.view.Selected == "" || len(m.view.FollowUps) == 0 {
		return "", false
	}
	idx := clamp(m.followCursor, 0, len(m.view.FollowUps)-1)
	return m.view.FollowUps[idx].FollowUp.ID, true
}

// syncCursor points the list cursor at the selected conversation.
func (m *model) syncCursor() {
	for i, row := range m.view.Conversations {
		if row.ID == m.view.Selected {
			m.cursor = i
			return
		}
	}
}

func (m *model) clampCursors() {
	m.syncCursor()
	m.cursor = clamp(m.cursor, 0, len(m.view.Conversations)-1)
	m.followCursor = clamp(m.followCursor, 0, len(m.view.FollowUps)-1)
	if m.view.Selected == "" && m.focus == paneFollowUps {
		m.focus = paneConversations
	}
}

func (m *model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.statusText = strings.TrimSpace(text)
	m.statusExpires = time.Now().Add(defaultStatusTTL)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func removeLastRune(value string) string {
	runes := []rune(value)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[:len(runes)-1])
}
