package engine

import (
	"time"

	"github.com/tOgg1/chatsync/internal/followup"
	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/timeline"
)

// View is an immutable snapshot of everything a front end renders.
type View struct {
	Now        time.Time               `json:"now"`
	Connection models.ConnectionStatus `json:"connection"`

	Conversations []ConversationRow `json:"conversations"`
	Selected      string            `json:"selected,omitempty"`

	// Loading is set while the selected conversation's history is being
	// pulled.
	Loading  bool             `json:"loading,omitempty"`
	Timeline []timeline.Entry `json:"timeline,omitempty"`

	FollowUpState followup.State   `json:"followUpState"`
	FollowUps     []followup.Entry `json:"followUps,omitempty"`
	CheckPending  bool             `json:"checkPending,omitempty"`
	CheckIn       time.Duration    `json:"checkIn,omitempty"`

	// AI is nil until the host has reported a status.
	AI         *models.AIModeStatus `json:"ai,omitempty"`
	AIToggling bool                 `json:"aiToggling,omitempty"`

	Intervention         models.InterventionState `json:"intervention"`
	InterventionToggling bool                     `json:"interventionToggling,omitempty"`

	Notifications []models.Notification `json:"notifications,omitempty"`
}

// ConversationRow is one conversation-list row.
type ConversationRow struct {
	models.Conversation

	FollowUpState      followup.State `json:"followUpState"`
	PendingFollowUps   int            `json:"pendingFollowUps,omitempty"`
	NextFollowUpIn     time.Duration  `json:"nextFollowUpIn,omitempty"`
	InterventionActive bool           `json:"interventionActive,omitempty"`
}

// SelectedConversation returns the selected row when it is listed.
func (v View) SelectedConversation() (ConversationRow, bool) {
	for _, row := range v.Conversations {
		if row.ID == v.Selected {
			return row, true
		}
	}
	return ConversationRow{}, false
}

func (e *Engine) buildView(now time.Time) View {
	v := View{
		Now:           now,
		Connection:    e.status,
		Selected:      e.selected,
		Notifications: e.gate.Visible(now),
	}

	for _, c := range e.registry.list() {
		row := ConversationRow{Conversation: c, FollowUpState: e.board.State(c.ID)}
		if s, ok := e.board.Lookup(c.ID); ok {
			entries := s.Entries(now)
			row.PendingFollowUps = len(entries)
			if len(entries) > 0 {
				row.NextFollowUpIn = entries[0].Remaining
			}
		}
		row.InterventionActive = e.modes.Intervention(c.ID, now).Active
		v.Conversations = append(v.Conversations, row)
	}

	if e.selected == "" {
		return v
	}
	id := e.selected
	v.Loading = e.guard.loading(pullMessages, id)
	v.Timeline = e.timeline.entries(now, e.cfg.Location)

	if s, ok := e.board.Lookup(id); ok {
		v.FollowUpState = s.State()
		v.FollowUps = s.Entries(now)
		v.CheckPending = s.Check().IsSome()
		v.CheckIn = s.CheckRemaining(now)
	}

	e.modes.AIStatus(id).WhenSome(func(s models.AIModeStatus) {
		v.AI = &s
	})
	v.AIToggling = e.modes.AIToggleInFlight(id)
	v.Intervention = e.modes.Intervention(id, now)
	v.InterventionToggling = e.modes.InterventionToggleInFlight(id)
	return v
}
