package hostsim

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tOgg1/chatsync/internal/db"
	"github.com/tOgg1/chatsync/internal/events"
	"github.com/tOgg1/chatsync/internal/host"
)

// messageExtra carries the structured parts of non-text messages.
type messageExtra struct {
	Interactive *host.WireInteractive `json:"interactive,omitempty"`
	Poll        *host.WirePoll        `json:"poll,omitempty"`
}

// toWireMessage serializes a stored message the way a phone bridge does:
// timestamps in seconds.
func toWireMessage(m db.Message) host.WireMessage {
	w := host.WireMessage{
		ID:         m.ID,
		FromMe:     m.FromMe,
		Type:       m.Type,
		Body:       m.Body,
		Caption:    m.Caption,
		HasMedia:   m.MimeType != "",
		MimeType:   m.MimeType,
		Timestamp:  m.Timestamp.Unix(),
		IsAI:       m.IsAI,
		IsFollowUp: m.IsFollowUp,
	}
	if len(m.Extra) > 0 {
		var extra messageExtra
		if err := json.Unmarshal(m.Extra, &extra); err == nil {
			w.Interactive = extra.Interactive
			w.Poll = extra.Poll
		}
	}
	return w
}

func toWireFollowUp(f db.FollowUp) host.WireFollowUp {
	return host.WireFollowUp{
		ID:            f.ID,
		ChatID:        f.ChatID,
		ScheduledTime: f.ScheduledAt.UnixMilli(),
		Message:       f.Message,
		Sequence:      f.Sequence,
		Total:         f.Total,
	}
}

func (h *Host) toWireIntervention(iv *db.Intervention) *host.WireIntervention {
	if iv == nil {
		return &host.WireIntervention{}
	}
	w := &host.WireIntervention{ChatID: iv.ChatID, Active: true, IsManual: iv.Manual}
	if !iv.Manual {
		w.RemainingMs = iv.ExpiresAt.Sub(h.cfg.Now()).Milliseconds()
		if w.RemainingMs < 0 {
			w.RemainingMs = 0
		}
	}
	return w
}

func (h *Host) pushMessage(m db.Message) {
	w := toWireMessage(m)
	h.push(events.NewMessage, host.NewMessagePayload{
		ConversationID: m.ChatID,
		ChatID:         m.ChatID,
		Message:        &w,
	})
}

func (h *Host) getChats(ctx context.Context) (any, *host.WireError) {
	chats, err := h.chats.List(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	res := host.ChatsResult{Envelope: ok(), Chats: make([]host.WireChat, 0, len(chats))}
	for _, c := range chats {
		w := host.WireChat{ID: c.ID, Name: c.Name, IsGroup: c.IsGroup, Timestamp: c.CreatedAt.Unix()}
		if c.LastMessage != nil {
			w.LastMessage = &host.WireLastMessage{
				Body:      c.LastMessage.Body,
				FromMe:    c.LastMessage.FromMe,
				Timestamp: c.LastMessage.Timestamp.Unix(),
			}
		}
		res.Chats = append(res.Chats, w)
	}
	return res, nil
}

func (h *Host) getMessages(ctx context.Context, chatID string, limit int) (any, *host.WireError) {
	msgs, err := h.messages.ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, internalError(err)
	}
	res := host.MessagesResult{Envelope: ok(), Messages: make([]host.WireMessage, 0, len(msgs))}
	for _, m := range msgs {
		res.Messages = append(res.Messages, toWireMessage(m))
	}
	return res, nil
}

func (h *Host) getAllInterventions(ctx context.Context) (any, *host.WireError) {
	ivs, err := h.interventions.ListActive(ctx, h.cfg.Now())
	if err != nil {
		return nil, internalError(err)
	}
	res := host.InterventionsResult{Envelope: ok(), Interventions: make([]host.WireIntervention, 0, len(ivs))}
	for i := range ivs {
		res.Interventions = append(res.Interventions, *h.toWireIntervention(&ivs[i]))
	}
	return res, nil
}

func (h *Host) interventionDetails(ctx context.Context, chatID string) (any, *host.WireError) {
	iv, err := h.interventions.Get(ctx, chatID, h.cfg.Now())
	if err != nil {
		return nil, internalError(err)
	}
	return host.InterventionResult{Envelope: ok(), Details: h.toWireIntervention(iv)}, nil
}

// toggleIntervention flips intervention only if the caller saw the current
// state. Turning it on makes it manual.
func (h *Host) toggleIntervention(ctx context.Context, chatID string, currentlyActive bool) (any, *host.WireError) {
	iv, err := h.interventions.Get(ctx, chatID, h.cfg.Now())
	if err != nil {
		return nil, internalError(err)
	}
	if (iv != nil) != currentlyActive {
		return host.InterventionResult{Envelope: fail(staleToggleError), Details: h.toWireIntervention(iv)}, nil
	}

	if iv != nil {
		if err := h.interventions.Clear(ctx, chatID); err != nil {
			return nil, internalError(err)
		}
		return host.InterventionResult{Envelope: host.Envelope{Success: true, Message: "AI responses resumed"}, Details: h.toWireIntervention(nil)}, nil
	}

	next := db.Intervention{ChatID: chatID, Manual: true}
	if err := h.interventions.Set(ctx, next); err != nil {
		return nil, internalError(err)
	}
	return host.InterventionResult{Envelope: host.Envelope{Success: true, Message: "You are now handling this chat"}, Details: h.toWireIntervention(&next)}, nil
}

func (h *Host) aiMode(ctx context.Context, chat *db.Chat) (any, *host.WireError) {
	iv, err := h.interventions.Get(ctx, chat.ID, h.cfg.Now())
	if err != nil {
		return nil, internalError(err)
	}
	res := host.AIModeResult{
		Envelope:  ok(),
		Active:    chat.AIActive && !chat.IsGroup && iv == nil,
		IsGroup:   chat.IsGroup,
		CanToggle: !chat.IsGroup,
	}
	if chat.IsGroup {
		res.Reason = groupReason
	}
	return res, nil
}

func (h *Host) setAIMode(ctx context.Context, chat *db.Chat, active bool) (any, *host.WireError) {
	if chat.IsGroup {
		return host.AIModeResult{Envelope: host.Envelope{Success: false, Reason: groupReason}, IsGroup: true}, nil
	}
	if err := h.chats.SetAIActive(ctx, chat.ID, active); err != nil {
		return nil, internalError(err)
	}
	if active {
		// Re-enabling AI ends any intervention.
		if err := h.interventions.Clear(ctx, chat.ID); err != nil {
			return nil, internalError(err)
		}
	}
	chat.AIActive = active
	return h.aiMode(ctx, chat)
}

func (h *Host) getActiveFollowUps(ctx context.Context) (any, *host.WireError) {
	items, err := h.followUps.ListActive(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	res := host.FollowUpsResult{Envelope: ok(), FollowUps: make([]host.WireFollowUp, 0, len(items))}
	for _, f := range items {
		res.FollowUps = append(res.FollowUps, toWireFollowUp(f))
	}
	return res, nil
}

func (h *Host) checkInfo(ctx context.Context, chatID string) (any, *host.WireError) {
	check, err := h.followUps.GetCheck(ctx, chatID)
	if err != nil {
		return nil, internalError(err)
	}
	if check == nil {
		return host.CheckInfoResult{Envelope: ok()}, nil
	}
	return host.CheckInfoResult{Envelope: ok(), Scheduled: true, CheckTime: check.CheckAt.UnixMilli()}, nil
}

// runCheck decides whether the chat needs a follow-up: it does when the
// peer spoke last and nothing is pending. The outcome is pushed and, for
// manual checks, also returned.
func (h *Host) runCheck(ctx context.Context, chatID string, automatic bool) (any, *host.WireError) {
	if err := h.followUps.ClearCheck(ctx, chatID); err != nil {
		return nil, internalError(err)
	}

	result := host.CheckResultPayload{ConversationID: chatID, ChatID: chatID, Success: true, IsAutomaticCheck: automatic}
	pending, err := h.pendingFor(ctx, chatID)
	if err != nil {
		return nil, internalError(err)
	}
	msgs, err := h.messages.ListByChat(ctx, chatID, 1)
	if err != nil {
		return nil, internalError(err)
	}

	switch {
	case pending > 0:
		result.Reason = "a follow-up is already scheduled"
	case len(msgs) == 0:
		result.Reason = "no messages yet"
	case msgs[0].FromMe:
		result.Reason = "waiting for the contact to reply"
	default:
		f := db.FollowUp{ChatID: chatID, ScheduledAt: h.cfg.Now().Add(h.cfg.FollowUpDelay), Message: followUpText}
		if err := h.followUps.Create(ctx, &f); err != nil {
			return nil, internalError(err)
		}
		result.HasFollowUp = true
		result.Message = "Follow-up scheduled"
	}

	h.push(events.FollowUpCheckResult, result)
	return host.CheckNowResult{
		Envelope:    host.Envelope{Success: true, Message: result.Message, Reason: result.Reason},
		HasFollowUp: result.HasFollowUp,
	}, nil
}

func (h *Host) pendingFor(ctx context.Context, chatID string) (int, error) {
	items, err := h.followUps.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range items {
		if f.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

func (h *Host) cancelFollowUp(ctx context.Context, chatID, id string) (any, *host.WireError) {
	err := h.followUps.Delete(ctx, chatID, strings.TrimSpace(id))
	if errors.Is(err, db.ErrFollowUpNotFound) {
		return fail("follow-up not found"), nil
	}
	if err != nil {
		return nil, internalError(err)
	}
	return host.Envelope{Success: true, Message: "Follow-up cancelled"}, nil
}

func (h *Host) sendFollowUpNow(ctx context.Context, chatID, id string) (any, *host.WireError) {
	f, err := h.followUps.Get(ctx, chatID, strings.TrimSpace(id))
	if errors.Is(err, db.ErrFollowUpNotFound) {
		return fail("follow-up not found"), nil
	}
	if err != nil {
		return nil, internalError(err)
	}
	if err := h.sendFollowUp(ctx, *f); err != nil {
		return nil, internalError(err)
	}
	return host.Envelope{Success: true, Message: "Follow-up sent"}, nil
}

func (h *Host) sendFollowUp(ctx context.Context, f db.FollowUp) error {
	if err := h.followUps.Delete(ctx, f.ChatID, f.ID); err != nil {
		return err
	}
	msg := db.Message{ChatID: f.ChatID, FromMe: true, Body: f.Message, IsAI: true, IsFollowUp: true, Timestamp: h.cfg.Now().UTC()}
	if err := h.messages.Create(ctx, &msg); err != nil {
		return err
	}
	h.pushMessage(msg)
	return nil
}

// sendMessage stores the user's message and suspends AI for the
// intervention duration.
func (h *Host) sendMessage(ctx context.Context, chatID, body string) (any, *host.WireError) {
	if strings.TrimSpace(body) == "" {
		return fail("message is empty"), nil
	}
	msg := db.Message{ChatID: chatID, FromMe: true, Body: body, Timestamp: h.cfg.Now().UTC()}
	if err := h.messages.Create(ctx, &msg); err != nil {
		return nil, internalError(err)
	}

	iv, err := h.interventions.Get(ctx, chatID, h.cfg.Now())
	if err != nil {
		return nil, internalError(err)
	}
	if iv == nil || !iv.Manual {
		expires := h.cfg.Now().Add(h.cfg.InterventionDuration)
		if err := h.interventions.Set(ctx, db.Intervention{ChatID: chatID, ExpiresAt: expires}); err != nil {
			return nil, internalError(err)
		}
	}

	h.pushMessage(msg)
	return host.SendMessageResult{Envelope: ok(), MessageID: msg.ID}, nil
}
