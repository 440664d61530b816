// Package followup tracks pending follow-up sends and eligibility checks per
// conversation and derives their countdowns.
package followup

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/models"
)

// State is the per-conversation follow-up state.
type State int

const (
	StateNone State = iota
	StateCheckPending
	StateScheduled
)

func (s State) String() string {
	switch s {
	case StateCheckPending:
		return "CHECK_PENDING"
	case StateScheduled:
		return "SCHEDULED"
	default:
		return "NONE"
	}
}

// Remaining is the countdown to at, clamped at zero.
func Remaining(at, now time.Time) time.Duration {
	d := at.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Entry is one row of the follow-up list.
type Entry struct {
	FollowUp  models.FollowUp
	Index     int
	Total     int
	Remaining time.Duration
	InFlight  bool
}

// TickResult reports what a tick changed for one conversation.
type TickResult struct {
	ConversationID string

	// Repull asks the caller to fetch the host's follow-up state again.
	Repull bool

	CheckExpired bool
	Removed      []string
}

// Changed reports whether the tick did anything the caller must act on.
func (r TickResult) Changed() bool {
	return r.Repull || r.CheckExpired || len(r.Removed) > 0
}

// Schedule is the follow-up view of one conversation. It is not safe for
// concurrent use.
type Schedule struct {
	conversationID string
	followUps      []models.FollowUp
	check          fn.Option[models.EligibilityCheck]

	// checkHeld is set when the host confirmed a check whose instant had
	// already elapsed locally.
	checkHeld bool

	inFlight map[string]struct{}
	dueAsked map[string]struct{}
	held     map[string]struct{}
}

// NewSchedule creates an empty schedule in StateNone.
func NewSchedule(conversationID string) *Schedule {
	return &Schedule{
		conversationID: conversationID,
		check:          fn.None[models.EligibilityCheck](),
		inFlight:       make(map[string]struct{}),
		dueAsked:       make(map[string]struct{}),
		held:           make(map[string]struct{}),
	}
}

// ConversationID returns the conversation the schedule belongs to.
func (s *Schedule) ConversationID() string {
	return s.conversationID
}

// State derives the state from the current records.
func (s *Schedule) State() State {
	switch {
	case len(s.followUps) > 0:
		return StateScheduled
	case s.check.IsSome():
		return StateCheckPending
	default:
		return StateNone
	}
}

// Next returns the earliest scheduled follow-up.
func (s *Schedule) Next() fn.Option[models.FollowUp] {
	if len(s.followUps) == 0 {
		return fn.None[models.FollowUp]()
	}
	return fn.Some(s.followUps[0])
}

// Check returns the pending eligibility check, if any.
func (s *Schedule) Check() fn.Option[models.EligibilityCheck] {
	return s.check
}

// FollowUps returns a copy of the follow-ups, earliest first.
func (s *Schedule) FollowUps() []models.FollowUp {
	out := make([]models.FollowUp, len(s.followUps))
	copy(out, s.followUps)
	return out
}

// Entries returns the ordered list with index/total and countdowns.
func (s *Schedule) Entries(now time.Time) []Entry {
	out := make([]Entry, 0, len(s.followUps))
	for i, f := range s.followUps {
		_, busy := s.inFlight[f.ID]
		out = append(out, Entry{
			FollowUp:  f,
			Index:     i + 1,
			Total:     len(s.followUps),
			Remaining: Remaining(f.ScheduledAt, now),
			InFlight:  busy,
		})
	}
	return out
}

// CheckRemaining is the countdown of the pending check, zero when none.
func (s *Schedule) CheckRemaining(now time.Time) time.Duration {
	c, ok := optionValue(s.check)
	if !ok {
		return 0
	}
	return Remaining(c.CheckAt, now)
}

// ApplySnapshot replaces the follow-up set with the host's. A non-empty set
// discards any eligibility check. Follow-ups the host still reports after
// their instant elapsed are kept until the host drops them.
func (s *Schedule) ApplySnapshot(followUps []models.FollowUp, now time.Time) {
	next := make([]models.FollowUp, 0, len(followUps))
	present := make(map[string]struct{}, len(followUps))
	for _, f := range followUps {
		if f.ConversationID != "" && f.ConversationID != s.conversationID {
			continue
		}
		f.ConversationID = s.conversationID
		next = append(next, f)
		present[f.ID] = struct{}{}
	}
	models.SortFollowUps(next)
	s.followUps = next

	for id := range s.dueAsked {
		if _, ok := present[id]; !ok {
			delete(s.dueAsked, id)
		}
	}
	s.held = make(map[string]struct{})
	for _, f := range next {
		if !now.Before(f.ScheduledAt) {
			s.held[f.ID] = struct{}{}
		}
	}

	if len(next) > 0 {
		s.clearCheck()
	}
}

// ApplyCheck sets or clears the eligibility check from a host pull. It is
// ignored while follow-ups exist.
func (s *Schedule) ApplyCheck(check fn.Option[models.EligibilityCheck], now time.Time) {
	if len(s.followUps) > 0 {
		s.clearCheck()
		return
	}
	s.clearCheck()
	check.WhenSome(func(c models.EligibilityCheck) {
		c.ConversationID = s.conversationID
		s.check = fn.Some(c)
		s.checkHeld = !now.Before(c.CheckAt)
	})
}

// ClearCheck discards the pending check. Manual checks call it at
// invocation.
func (s *Schedule) ClearCheck() {
	s.clearCheck()
}

func (s *Schedule) clearCheck() {
	s.check = fn.None[models.EligibilityCheck]()
	s.checkHeld = false
}

// BeginCommand marks a cancel or send-now as in flight for id.
func (s *Schedule) BeginCommand(id string) {
	s.inFlight[id] = struct{}{}
}

// EndCommand clears the in-flight mark for id.
func (s *Schedule) EndCommand(id string) {
	delete(s.inFlight, id)
}

// InFlight reports whether a command for id is outstanding.
func (s *Schedule) InFlight(id string) bool {
	_, ok := s.inFlight[id]
	return ok
}

// Tick advances countdowns. A check elapsed by more than grace with no
// follow-up is cleared and a re-pull requested. A follow-up reaching zero
// requests one re-pull; once elapsed by more than grace with no command in
// flight it is removed locally.
func (s *Schedule) Tick(now time.Time, grace time.Duration) TickResult {
	res := TickResult{ConversationID: s.conversationID}

	if c, ok := optionValue(s.check); ok && len(s.followUps) == 0 && !s.checkHeld {
		if now.Sub(c.CheckAt) > grace {
			s.clearCheck()
			res.CheckExpired = true
			res.Repull = true
		}
	}

	kept := s.followUps[:0]
	for _, f := range s.followUps {
		if Remaining(f.ScheduledAt, now) > 0 {
			kept = append(kept, f)
			continue
		}
		if _, asked := s.dueAsked[f.ID]; !asked {
			s.dueAsked[f.ID] = struct{}{}
			res.Repull = true
		}
		_, held := s.held[f.ID]
		_, busy := s.inFlight[f.ID]
		if now.Sub(f.ScheduledAt) > grace && !held && !busy {
			res.Removed = append(res.Removed, f.ID)
			delete(s.dueAsked, f.ID)
			continue
		}
		kept = append(kept, f)
	}
	s.followUps = kept

	return res
}

func optionValue[T any](o fn.Option[T]) (T, bool) {
	var zero T
	return o.UnwrapOr(zero), o.IsSome()
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
