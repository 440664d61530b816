// Package models defines the client-side data model mirrored from the host.
package models

import (
	"sort"
	"strings"
	"time"
)

// Conversation is a single addressable chat thread with a peer or group.
type Conversation struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	IsGroup            bool      `json:"isGroup"`
	LastMessagePreview string    `json:"lastMessagePreview,omitempty"`
	LastActivity       time.Time `json:"lastActivity,omitempty"`
	LastFromSelf       bool      `json:"lastFromSelf,omitempty"`
}

// DisplayName falls back to the identifier when the host sent no name.
func (c Conversation) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return c.ID
}

// SortConversations orders by last activity, newest first, then by ID.
func SortConversations(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		if !convs[i].LastActivity.Equal(convs[j].LastActivity) {
			return convs[i].LastActivity.After(convs[j].LastActivity)
		}
		return convs[i].ID < convs[j].ID
	})
}

// ConnectionStatus is the host's connection state as reported by status-update.
type ConnectionStatus string

const (
	ConnectionUnknown                ConnectionStatus = ""
	ConnectionOpen                   ConnectionStatus = "open"
	ConnectionClosedByUser           ConnectionStatus = "close-by-user"
	ConnectionDisconnectedValidation ConnectionStatus = "disconnected-by-validation"
	ConnectionDisconnectedByError    ConnectionStatus = "disconnected-by-error"
)

// ParseConnectionStatus maps a wire value to a known status.
func ParseConnectionStatus(raw string) ConnectionStatus {
	switch ConnectionStatus(strings.TrimSpace(raw)) {
	case ConnectionOpen:
		return ConnectionOpen
	case ConnectionClosedByUser:
		return ConnectionClosedByUser
	case ConnectionDisconnectedValidation:
		return ConnectionDisconnectedValidation
	case ConnectionDisconnectedByError:
		return ConnectionDisconnectedByError
	default:
		return ConnectionUnknown
	}
}

// Connected reports whether the host has a live connection.
func (s ConnectionStatus) Connected() bool {
	return s == ConnectionOpen
}
