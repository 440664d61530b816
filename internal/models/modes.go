package models

import "time"

// AIModeStatus describes whether automated responding is on for a
// conversation and whether the user may change it.
type AIModeStatus struct {
	ConversationID string `json:"conversationId"`
	Active         bool   `json:"active"`
	IsGroup        bool   `json:"isGroup"`
	CanToggle      bool   `json:"canToggle"`
	Reason         string `json:"reason,omitempty"`
}

// InterventionState describes a human takeover of a conversation. Only a
// temporary (non-manual) intervention expires.
type InterventionState struct {
	ConversationID string        `json:"conversationId"`
	Active         bool          `json:"active"`
	Manual         bool          `json:"manual"`
	Remaining      time.Duration `json:"remaining"`

	// AsOf is the local instant Remaining was measured at.
	AsOf time.Time `json:"asOf"`
}

// Temporary reports whether the intervention counts down.
func (s InterventionState) Temporary() bool {
	return s.Active && !s.Manual
}

// ExpiresAt is the instant a temporary intervention ends. The second return
// is false for inactive or manual interventions.
func (s InterventionState) ExpiresAt() (time.Time, bool) {
	if !s.Temporary() {
		return time.Time{}, false
	}
	return s.AsOf.Add(s.Remaining), true
}
