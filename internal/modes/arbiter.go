// Package modes tracks the per-conversation AI responder mode and human
// intervention state.
package modes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/models"
)

var (
	// ErrToggleInFlight is returned when a toggle for the conversation is
	// already waiting on the host. No request may be issued.
	ErrToggleInFlight = errors.New("toggle already in flight")

	// ErrToggleNotAllowed is returned when the host disallows toggling AI mode.
	ErrToggleNotAllowed = errors.New("ai mode cannot be toggled")
)

const reasonStatusUnknown = "AI mode status has not been loaded yet"

type conversationModes struct {
	ai         fn.Option[models.AIModeStatus]
	aiInFlight bool

	intervention         fn.Option[models.InterventionState]
	interventionInFlight bool
}

// Arbiter holds both mode axes for every conversation. It is owned by the
// engine's event loop and not safe for concurrent use.
type Arbiter struct {
	convs map[string]*conversationModes
}

// NewArbiter creates an empty arbiter.
func NewArbiter() *Arbiter {
	return &Arbiter{convs: make(map[string]*conversationModes)}
}

func (a *Arbiter) get(id string) *conversationModes {
	c, ok := a.convs[id]
	if !ok {
		c = &conversationModes{
			ai:           fn.None[models.AIModeStatus](),
			intervention: fn.None[models.InterventionState](),
		}
		a.convs[id] = c
	}
	return c
}

// AIStatus returns the last AI mode status the host reported.
func (a *Arbiter) AIStatus(id string) fn.Option[models.AIModeStatus] {
	if c, ok := a.convs[id]; ok {
		return c.ai
	}
	return fn.None[models.AIModeStatus]()
}

// ApplyAIStatus stores a host-reported AI mode status.
func (a *Arbiter) ApplyAIStatus(status models.AIModeStatus) {
	if status.ConversationID == "" {
		return
	}
	a.get(status.ConversationID).ai = fn.Some(status)
}

// AIToggleInFlight reports whether an AI toggle is waiting on the host.
func (a *Arbiter) AIToggleInFlight(id string) bool {
	c, ok := a.convs[id]
	return ok && c.aiInFlight
}

// BeginAIToggle claims the AI toggle for id and returns the desired active
// flag to send. It fails without side effects when a toggle is in flight or
// toggling is not allowed.
func (a *Arbiter) BeginAIToggle(id string) (bool, error) {
	c := a.get(id)
	if c.aiInFlight {
		return false, ErrToggleInFlight
	}
	status, ok := optionValue(c.ai)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrToggleNotAllowed, reasonStatusUnknown)
	}
	if !status.CanToggle {
		reason := strings.TrimSpace(status.Reason)
		if reason == "" && status.IsGroup {
			reason = "AI mode is not available for group conversations"
		}
		if reason == "" {
			return false, ErrToggleNotAllowed
		}
		return false, fmt.Errorf("%w: %s", ErrToggleNotAllowed, reason)
	}
	c.aiInFlight = true
	return !status.Active, nil
}

// EndAIToggle releases the AI toggle. A present result replaces the stored
// status; an absent one leaves it untouched.
func (a *Arbiter) EndAIToggle(id string, result fn.Option[models.AIModeStatus]) {
	c := a.get(id)
	c.aiInFlight = false
	result.WhenSome(func(s models.AIModeStatus) {
		s.ConversationID = id
		c.ai = fn.Some(s)
	})
}

// Intervention returns the intervention state with Remaining measured at now.
func (a *Arbiter) Intervention(id string, now time.Time) models.InterventionState {
	c, ok := a.convs[id]
	if !ok {
		return models.InterventionState{ConversationID: id, AsOf: now}
	}
	state, ok := optionValue(c.intervention)
	if !ok {
		return models.InterventionState{ConversationID: id, AsOf: now}
	}
	state.Remaining = a.InterventionRemaining(id, now)
	state.AsOf = now
	return state
}

// InterventionRemaining is the countdown of a temporary intervention,
// clamped at zero.
func (a *Arbiter) InterventionRemaining(id string, now time.Time) time.Duration {
	c, ok := a.convs[id]
	if !ok {
		return 0
	}
	state, ok := optionValue(c.intervention)
	if !ok {
		return 0
	}
	at, ok := state.ExpiresAt()
	if !ok || !now.Before(at) {
		return 0
	}
	return at.Sub(now)
}

// ApplyIntervention stores a host-reported intervention state. AsOf must be
// the local instant the response arrived.
func (a *Arbiter) ApplyIntervention(state models.InterventionState) {
	if state.ConversationID == "" {
		return
	}
	if !state.Active {
		state.Manual = false
		state.Remaining = 0
	}
	a.get(state.ConversationID).intervention = fn.Some(state)
}

// ApplyAllInterventions applies the host's list of active interventions.
// Known conversations missing from the list become inactive.
func (a *Arbiter) ApplyAllInterventions(states []models.InterventionState, now time.Time) {
	seen := make(map[string]struct{}, len(states))
	for _, s := range states {
		if s.ConversationID == "" {
			continue
		}
		seen[s.ConversationID] = struct{}{}
		s.AsOf = now
		a.ApplyIntervention(s)
	}
	for id, c := range a.convs {
		if _, ok := seen[id]; ok || c.intervention.IsNone() {
			continue
		}
		a.ApplyIntervention(models.InterventionState{ConversationID: id, AsOf: now})
	}
}

// InterventionToggleInFlight reports whether an intervention toggle is
// waiting on the host.
func (a *Arbiter) InterventionToggleInFlight(id string) bool {
	c, ok := a.convs[id]
	return ok && c.interventionInFlight
}

// BeginInterventionToggle claims the intervention toggle for id and returns
// the currently displayed active flag, sent to the host as a precondition.
func (a *Arbiter) BeginInterventionToggle(id string) (bool, error) {
	c := a.get(id)
	if c.interventionInFlight {
		return false, ErrToggleInFlight
	}
	c.interventionInFlight = true
	state, _ := optionValue(c.intervention)
	return state.Active, nil
}

// EndInterventionToggle releases the toggle and applies the host's
// post-toggle details when present.
func (a *Arbiter) EndInterventionToggle(id string, result fn.Option[models.InterventionState]) {
	c := a.get(id)
	c.interventionInFlight = false
	result.WhenSome(func(s models.InterventionState) {
		s.ConversationID = id
		a.ApplyIntervention(s)
	})
}

// Tick marks temporary interventions that reached zero as inactive and
// returns their conversation ids so the caller can re-pull intervention
// details and AI status. A temporary intervention the host reported with no
// time left is held as active until the host reports otherwise.
func (a *Arbiter) Tick(now time.Time) []string {
	var expired []string
	for id, c := range a.convs {
		state, ok := optionValue(c.intervention)
		if !ok {
			continue
		}
		at, temporary := state.ExpiresAt()
		if !temporary || state.Remaining <= 0 || now.Before(at) {
			continue
		}
		c.intervention = fn.Some(models.InterventionState{ConversationID: id, AsOf: now})
		expired = append(expired, id)
	}
	sort.Strings(expired)
	return expired
}

// Forget drops all mode state for a conversation.
func (a *Arbiter) Forget(id string) {
	delete(a.convs, id)
}

func optionValue[T any](o fn.Option[T]) (T, bool) {
	var zero T
	return o.UnwrapOr(zero), o.IsSome()
}
