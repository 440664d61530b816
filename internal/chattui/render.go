package chattui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/chatsync/internal/engine"
	"github.com/tOgg1/chatsync/internal/followup"
	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/timeline"
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	width := m.effectiveWidth()
	height := m.effectiveHeight()

	header := m.renderHeader(width)
	overhead := 3 + len(m.view.Notifications)
	if m.mode != modeMain {
		overhead += 3
	}
	if m.statusText != "" {
		overhead++
	}
	paneHeight := maxInt(8, height-overhead)

	leftWidth := maxInt(28, width/3)
	rightWidth := maxInt(30, width-leftWidth)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderConversationPane(leftWidth, paneHeight),
		m.renderDetailPane(rightWidth, paneHeight),
	)

	parts := []string{header, body}
	switch m.mode {
	case modeCompose:
		parts = append(parts, m.renderCompose(width))
	case modeConfirm:
		parts = append(parts, m.renderConfirm(width))
	case modeHelp:
		parts = append(parts, m.renderHelp(width))
	}
	for _, n := range m.view.Notifications {
		parts = append(parts, m.renderNotification(n, width))
	}
	if m.statusText != "" {
		style := m.palette.muted()
		if m.statusKind == statusErr {
			style = m.palette.fg(m.palette.Error).Bold(true)
		}
		parts = append(parts, style.Render(truncateLine(m.statusText, width)))
	}
	return strings.Join(parts, "\n")
}

func (m model) effectiveWidth() int {
	if m.width <= 0 {
		return minWindowWidth
	}
	return maxInt(minWindowWidth, m.width)
}

func (m model) effectiveHeight() int {
	if m.height <= 0 {
		return minWindowHeight
	}
	return maxInt(minWindowHeight, m.height)
}

func (m model) renderHeader(width int) string {
	pending := 0
	for _, row := range m.view.Conversations {
		pending += row.PendingFollowUps
	}
	text := fmt.Sprintf("chatsync  %s  conversations:%d  follow-ups:%d  theme:%s  keys: j/k a i c s x X D m r ? q",
		connectionLabel(m.view.Connection),
		len(m.view.Conversations),
		pending,
		m.palette.Name,
	)
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.palette.Focus)).
		Bold(true).
		Render(truncateLine(text, width))
}

func connectionLabel(s models.ConnectionStatus) string {
	switch s {
	case models.ConnectionOpen:
		return "connected"
	case models.ConnectionUnknown:
		return "connecting..."
	default:
		return "disconnected (" + string(s) + ")"
	}
}

func (m model) paneStyle(width, height int, focused bool) lipgloss.Style {
	border := m.palette.Border
	if focused {
		border = m.palette.Focus
	}
	return lipgloss.NewStyle().
		Width(width - 2).
		Height(height - 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border))
}

func (m model) renderConversationPane(width, height int) string {
	inner := width - 4
	rows := []string{m.palette.muted().Render("Conversations")}
	if len(m.view.Conversations) == 0 {
		rows = append(rows, m.palette.muted().Render("No conversations yet"))
	}

	// Two lines per conversation; keep the cursor visible.
	capacity := maxInt(1, (height-3)/2)
	start := 0
	if m.cursor >= capacity {
		start = m.cursor - capacity + 1
	}
	end := minInt(len(m.view.Conversations), start+capacity)
	for i := start; i < end; i++ {
		rows = append(rows, m.renderConversationRow(m.view.Conversations[i], i == m.cursor, inner)...)
	}

	return m.paneStyle(width, height, m.focus == paneConversations).Render(strings.Join(rows, "\n"))
}

func (m model) renderConversationRow(row engine.ConversationRow, cursor bool, width int) []string {
	marker := "  "
	nameStyle := m.palette.fg(m.palette.Text)
	if cursor {
		marker = m.palette.fg(m.palette.Focus).Bold(true).Render("> ")
		nameStyle = nameStyle.Bold(true)
	}

	var badges []string
	if row.IsGroup {
		badges = append(badges, "group")
	}
	if row.InterventionActive {
		badges = append(badges, "human")
	}
	switch row.FollowUpState {
	case followup.StateScheduled:
		badges = append(badges, fmt.Sprintf("%d follow-up in %s", row.PendingFollowUps, formatCountdown(row.NextFollowUpIn)))
	case followup.StateCheckPending:
		badges = append(badges, "check pending")
	}

	name := row.DisplayName()
	line := marker + nameStyle.Render(truncateLine(name, maxInt(8, width-2)))
	if len(badges) > 0 {
		line += " " + m.palette.fg(m.palette.Warning).Render("["+strings.Join(badges, ", ")+"]")
	}

	preview := row.LastMessagePreview
	if row.LastFromSelf && preview != "" {
		preview = "you: " + preview
	}
	return []string{
		line,
		"  " + m.palette.muted().Render(truncateLine(preview, width-2)),
	}
}

func (m model) renderDetailPane(width, height int) string {
	inner := width - 4
	v := m.view
	if v.Selected == "" {
		content := m.palette.muted().Render("Select a conversation with j/k")
		return m.paneStyle(width, height, false).Render(content)
	}

	title := v.Selected
	if row, ok := v.SelectedConversation(); ok {
		title = row.DisplayName()
	}
	lines := []string{
		m.palette.fg(m.palette.Focus).Bold(true).Render(truncateLine(title, inner)),
		m.renderModes(inner),
	}
	lines = append(lines, m.renderFollowUps(inner)...)
	lines = append(lines, m.palette.muted().Render(strings.Repeat("-", maxInt(1, inner))))

	available := height - 2 - len(lines)
	lines = append(lines, m.renderTimeline(inner, available)...)

	return m.paneStyle(width, height, m.focus == paneFollowUps).Render(strings.Join(lines, "\n"))
}

func (m model) renderModes(width int) string {
	v := m.view
	ai := "AI: unknown"
	if v.AI != nil {
		switch {
		case !v.AI.CanToggle && v.AI.IsGroup:
			ai = "AI: unavailable (group)"
		case v.AI.Active:
			ai = "AI: on"
		default:
			ai = "AI: off"
		}
	}
	if v.AIToggling {
		ai += " (updating...)"
	}

	human := "Human: off"
	switch {
	case v.Intervention.Active && v.Intervention.Manual:
		human = "Human: handling"
	case v.Intervention.Active:
		human = "Human: handling, AI resumes in " + formatCountdown(v.Intervention.Remaining)
	}
	if v.InterventionToggling {
		human += " (updating...)"
	}
	return truncateLine(ai+"   "+human, width)
}

func (m model) renderFollowUps(width int) []string {
	v := m.view
	switch {
	case v.FollowUpState == followup.StateCheckPending:
		return []string{m.palette.fg(m.palette.Info).Render(
			truncateLine("Follow-up check in "+formatCountdown(v.CheckIn), width))}
	case len(v.FollowUps) == 0:
		return []string{m.palette.muted().Render("No follow-ups scheduled")}
	}

	lines := make([]string, 0, len(v.FollowUps))
	for i, e := range v.FollowUps {
		marker := "  "
		if m.focus == paneFollowUps && i == m.followCursor {
			marker = m.palette.fg(m.palette.Focus).Bold(true).Render("> ")
		}
		when := "in " + formatCountdown(e.Remaining)
		if !m.relative {
			when = "at " + e.FollowUp.ScheduledAt.Local().Format("15:04")
		}
		if e.Remaining == 0 {
			when = "sending..."
		}
		text := fmt.Sprintf("%d/%d %s  %s", e.Index, e.Total, when, firstLine(e.FollowUp.Text))
		if e.InFlight {
			text += " (working...)"
		}
		lines = append(lines, marker+truncateLine(text, width-2))
	}
	return lines
}

// renderTimeline renders the newest entries that fit.
func (m model) renderTimeline(width, available int) []string {
	v := m.view
	if available <= 0 {
		return nil
	}
	if v.Loading && len(v.Timeline) == 0 {
		return []string{m.palette.muted().Render("Loading...")}
	}
	if len(v.Timeline) == 0 {
		return []string{m.palette.muted().Render("No messages")}
	}

	start := maxInt(0, len(v.Timeline)-available)
	lines := make([]string, 0, len(v.Timeline)-start)
	for _, e := range v.Timeline[start:] {
		if e.Kind == timeline.EntrySeparator {
			label := "--"
			if e.Label != "" {
				label = "-- " + e.Label + " --"
			}
			lines = append(lines, m.palette.muted().Render(centerText(label, width)))
			continue
		}
		lines = append(lines, m.renderMessage(e, width))
	}
	return lines
}

func (m model) renderMessage(e timeline.Entry, width int) string {
	msg := e.Message
	who := "them"
	style := m.palette.fg(m.palette.Other)
	switch {
	case msg.FromSelf && msg.IsAI:
		who = "ai"
		style = m.palette.fg(m.palette.AI)
	case msg.FromSelf:
		who = "you"
		style = m.palette.fg(m.palette.Own)
	}
	if msg.IsFollowUp {
		who += "/follow-up"
	}
	label := e.Label
	if label == "" {
		label = "     "
	}
	text := fmt.Sprintf("%s %-4s %s", label, who, msg.Content.Preview())
	if e.Highlighted {
		style = m.palette.fg(m.palette.Highlight).Bold(true)
	}
	return style.Render(truncateLine(text, width))
}

func (m model) renderCompose(width int) string {
	prompt := m.palette.fg(m.palette.Focus).Bold(true).Render("message> ")
	hint := m.palette.muted().Render("  enter send  esc keep draft")
	return m.box(width).Render(prompt + m.compose + "_" + hint)
}

func (m model) renderConfirm(width int) string {
	if m.confirm == nil {
		return ""
	}
	title := m.palette.fg(m.palette.Error).Bold(true).Render(m.confirm.prompt)
	return m.box(width).Render(title + m.palette.muted().Render("  y confirm  n cancel"))
}

func (m model) renderHelp(width int) string {
	lines := []string{
		"j/k move  tab switch pane  m/enter compose  r refresh",
		"a toggle AI  i take over / hand back  c check follow-up now",
		"s send follow-up now  x cancel follow-up  X cancel all  D clear history",
		"t theme  T relative times  q quit",
	}
	return m.box(width).Render(strings.Join(lines, "\n"))
}

func (m model) box(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width - 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.palette.Border))
}

func (m model) renderNotification(n models.Notification, width int) string {
	return m.palette.severity(n.Severity).Render(truncateLine("* "+n.Text, width))
}

// formatCountdown renders d as "1h 05m", "4m 09s" or "12s".
func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	mnt := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, mnt)
	case mnt > 0:
		return fmt.Sprintf("%dm %02ds", mnt, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func centerText(text string, width int) string {
	pad := (width - lipgloss.Width(text)) / 2
	if pad <= 0 {
		return text
	}
	return strings.Repeat(" ", pad) + text
}

func truncateLine(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(text) <= width {
		return text
	}
	runes := []rune(text)
	if width <= 3 {
		return string(runes[:minInt(width, len(runes))])
	}
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-3]) + "..."
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
