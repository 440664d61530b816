package host

import (
	"fmt"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/events"
	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/timeline"
)

// ToMessage converts a wire message, resolving its content variant and
// timestamp once. fallback is appended as the last timestamp candidate
// when present.
func ToMessage(w WireMessage, fallback fn.Option[time.Time]) models.Message {
	raw := models.RawContent{
		Type:      w.Type,
		Body:      w.Body,
		Caption:   w.Caption,
		HasMedia:  w.HasMedia,
		MediaType: w.MimeType,
	}
	if w.Interactive != nil {
		raw.Interactive = &models.Interactive{
			Header:  w.Interactive.Header,
			Body:    w.Interactive.Body,
			Footer:  w.Interactive.Footer,
			Buttons: append([]string(nil), w.Interactive.Buttons...),
		}
	}
	if w.Poll != nil {
		raw.Poll = &models.Poll{
			Question: w.Poll.Question,
			Options:  append([]string(nil), w.Poll.Options...),
		}
	}

	return models.Message{
		ID:         w.ID,
		FromSelf:   w.FromMe,
		Content:    models.ResolveContent(raw),
		Timestamp:  timeline.NormalizeCandidates(w.Timestamp, w.MessageTimestamp, w.Time, fallback),
		IsAI:       w.IsAI,
		IsFollowUp: w.IsFollowUp,
	}
}

// ToConversation converts a chat listing entry.
func ToConversation(w WireChat) models.Conversation {
	conv := models.Conversation{
		ID:      strings.TrimSpace(w.ID),
		Name:    w.Name,
		IsGroup: w.IsGroup,
	}
	var last any
	if w.LastMessage != nil {
		conv.LastMessagePreview = models.ResolveContent(models.RawContent{Body: w.LastMessage.Body}).Preview()
		conv.LastFromSelf = w.LastMessage.FromMe
		last = w.LastMessage.Timestamp
	}
	conv.LastActivity = timeline.NormalizeCandidates(last, w.Timestamp).UnwrapOr(time.Time{})
	return conv
}

// ToIntervention converts intervention details measured at asOf.
func ToIntervention(conversationID string, w WireIntervention, asOf time.Time) models.InterventionState {
	if id := strings.TrimSpace(w.ChatID); id != "" {
		conversationID = id
	}
	state := models.InterventionState{
		ConversationID: conversationID,
		Active:         w.Active,
		Manual:         w.IsManual,
		AsOf:           asOf,
	}
	if w.Active && !w.IsManual && w.RemainingMs > 0 {
		state.Remaining = time.Duration(w.RemainingMs) * time.Millisecond
	}
	return state
}

// ToFollowUp converts a pending follow-up. The second return is false when
// the scheduled instant is unusable.
func ToFollowUp(w WireFollowUp) (models.FollowUp, bool) {
	at := timeline.Normalize(w.ScheduledTime)
	if at.IsNone() || strings.TrimSpace(w.ID) == "" {
		return models.FollowUp{}, false
	}
	total := w.Total
	if total < w.Sequence {
		total = w.Sequence
	}
	return models.FollowUp{
		ID:             w.ID,
		ConversationID: strings.TrimSpace(w.ChatID),
		ScheduledAt:    at.UnwrapOr(time.Time{}),
		Text:           w.Message,
		Sequence:       w.Sequence,
		Total:          total,
	}, true
}

// NewMessagePush is a decoded new-message event.
type NewMessagePush struct {
	ConversationID string
	Message        fn.Option[models.Message]
}

// CheckResultPush is a decoded follow-up-check-result event.
type CheckResultPush struct {
	ConversationID string
	Success        bool
	HasFollowUp    bool
	Message        string
	Reason         string
	Automatic      bool
}

// Outcome names the result for notification identities.
func (p CheckResultPush) Outcome() string {
	switch {
	case !p.Success:
		return "failed"
	case p.HasFollowUp:
		return "scheduled"
	default:
		return "not-needed"
	}
}

// StatusPush is a decoded status-update event.
type StatusPush struct {
	Status         models.ConnectionStatus
	ConversationID string
	Reason         string
}

// DecodeNewMessage decodes a new-message event. A live arrival with no
// usable timestamp is stamped with its receive time.
func DecodeNewMessage(ev events.Event) (NewMessagePush, error) {
	var p NewMessagePayload
	if err := decodeJSON(ev.Payload, &p); err != nil {
		return NewMessagePush{}, fmt.Errorf("decode %s: %w", ev.Name, err)
	}
	out := NewMessagePush{
		ConversationID: conversationKey(p.ChatID, p.ConversationID),
		Message:        fn.None[models.Message](),
	}
	if p.Message != nil {
		out.Message = fn.Some(ToMessage(*p.Message, fn.Some(ev.ReceivedAt)))
	}
	return out, nil
}

// DecodeStatus decodes a status-update event.
func DecodeStatus(ev events.Event) (StatusPush, error) {
	var p StatusPayload
	if err := decodeJSON(ev.Payload, &p); err != nil {
		return StatusPush{}, fmt.Errorf("decode %s: %w", ev.Name, err)
	}
	return StatusPush{
		Status:         models.ParseConnectionStatus(p.Status),
		ConversationID: strings.TrimSpace(p.ConversationID),
		Reason:         p.Reason,
	}, nil
}

// DecodeCheckResult decodes a follow-up-check-result event.
func DecodeCheckResult(ev events.Event) (CheckResultPush, error) {
	var p CheckResultPayload
	if err := decodeJSON(ev.Payload, &p); err != nil {
		return CheckResultPush{}, fmt.Errorf("decode %s: %w", ev.Name, err)
	}
	return CheckResultPush{
		ConversationID: conversationKey(p.ChatID, p.ConversationID),
		Success:        p.Success,
		HasFollowUp:    p.HasFollowUp,
		Message:        p.Message,
		Reason:         p.Reason,
		Automatic:      p.IsAutomaticCheck,
	}, nil
}
