package models

import (
	"sort"
	"time"
)

// FollowUp is a host-scheduled outbound message tied to a conversation.
type FollowUp struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	ScheduledAt    time.Time `json:"scheduledAt"`
	Text           string    `json:"message"`
	Sequence       int       `json:"sequence"`
	Total          int       `json:"total"`
}

// EligibilityCheck is a host-scheduled evaluation of whether a FollowUp
// should be created. A conversation has at most one.
type EligibilityCheck struct {
	ConversationID string    `json:"conversationId"`
	CheckAt        time.Time `json:"checkAt"`
}

// SortFollowUps orders follow-ups by scheduled instant, then sequence.
func SortFollowUps(items []FollowUp) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ScheduledAt.Before(items[j].ScheduledAt)
		}
		if items[i].Sequence != items[j].Sequence {
			return items[i].Sequence < items[j].Sequence
		}
		return items[i].ID < items[j].ID
	})
}
