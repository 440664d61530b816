package models

import "strings"

// NotificationCategory names the kind of event a notification is about.
type NotificationCategory string

const (
	CategoryConnection         NotificationCategory = "connection"
	CategoryManualCheck        NotificationCategory = "manual-check"
	CategoryAutomaticCheck     NotificationCategory = "automatic-check"
	CategoryCancelFollowUp     NotificationCategory = "cancel-follow-up"
	CategorySendFollowUp       NotificationCategory = "send-follow-up"
	CategoryCancelAllFollowUps NotificationCategory = "cancel-all-follow-ups"
	CategoryAIMode             NotificationCategory = "ai-mode"
	CategoryIntervention       NotificationCategory = "intervention"
	CategorySendMessage        NotificationCategory = "send-message"
	CategoryClearChat          NotificationCategory = "clear-chat"
	CategoryTransport          NotificationCategory = "transport"
)

// NotificationIdentity is the dedup key for a user-visible notification.
type NotificationIdentity struct {
	ConversationID string
	Category       NotificationCategory
	Outcome        string
}

// Key renders the identity as a stable string.
func (n NotificationIdentity) Key() string {
	return strings.Join([]string{
		strings.TrimSpace(n.ConversationID),
		string(n.Category),
		strings.TrimSpace(n.Outcome),
	}, "|")
}

// Severity drives toast styling.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-visible toast.
type Notification struct {
	Identity NotificationIdentity
	Severity Severity
	Text     string
}
