package followup

import (
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/models"
)

// Board holds the schedules of every known conversation. It is owned by the
// engine's event loop and not safe for concurrent use.
type Board struct {
	schedules map[string]*Schedule
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{schedules: make(map[string]*Schedule)}
}

// Schedule returns the schedule for conversationID, creating it if needed.
func (b *Board) Schedule(conversationID string) *Schedule {
	s, ok := b.schedules[conversationID]
	if !ok {
		s = NewSchedule(conversationID)
		b.schedules[conversationID] = s
	}
	return s
}

// Lookup returns the schedule for conversationID without creating one.
func (b *Board) Lookup(conversationID string) (*Schedule, bool) {
	s, ok := b.schedules[conversationID]
	return s, ok
}

// State returns the state of conversationID.
func (b *Board) State(conversationID string) State {
	if s, ok := b.schedules[conversationID]; ok {
		return s.State()
	}
	return StateNone
}

// ApplyAll replaces every conversation's follow-up set with the host's
// global snapshot. Conversations missing from the snapshot end up empty.
func (b *Board) ApplyAll(followUps []models.FollowUp, now time.Time) {
	grouped := make(map[string][]models.FollowUp)
	for _, f := range followUps {
		if f.ConversationID == "" {
			continue
		}
		grouped[f.ConversationID] = append(grouped[f.ConversationID], f)
	}
	for id, s := range b.schedules {
		if _, ok := grouped[id]; !ok {
			s.ApplySnapshot(nil, now)
		}
	}
	for id, items := range grouped {
		b.Schedule(id).ApplySnapshot(items, now)
	}
}

// ApplyCheck applies a per-conversation check pull.
func (b *Board) ApplyCheck(conversationID string, check fn.Option[models.EligibilityCheck], now time.Time) {
	b.Schedule(conversationID).ApplyCheck(check, now)
}

// Forget drops a conversation, used when the host clears it.
func (b *Board) Forget(conversationID string) {
	delete(b.schedules, conversationID)
}

// Tick advances every schedule and returns the conversations that changed,
// ordered by conversation id.
func (b *Board) Tick(now time.Time, grace time.Duration) []TickResult {
	var out []TickResult
	for _, s := range b.schedules {
		if res := s.Tick(now, grace); res.Changed() {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out
}

// Active returns the ids of conversations with a check or follow-ups.
func (b *Board) Active() []string {
	var ids []string
	for id, s := range b.schedules {
		if s.State() != StateNone {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Total counts pending follow-ups across conversations.
func (b *Board) Total() int {
	n := 0
	for _, s := range b.schedules {
		n += len(s.followUps)
	}
	return n
}
