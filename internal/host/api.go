package host

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/timeline"
)

// DefaultMessageLimit is how many messages a history pull asks for.
const DefaultMessageLimit = 200

// CheckOutcome is the direct answer of check-follow-up-now.
type CheckOutcome struct {
	HasFollowUp bool
	Message     string
}

// Chats pulls the conversation list.
func (c *Client) Chats(ctx context.Context) ([]models.Conversation, error) {
	var res ChatsResult
	if err := c.Call(ctx, ChannelGetChats, nil, &res); err != nil {
		return nil, err
	}
	out := make([]models.Conversation, 0, len(res.Chats))
	for _, w := range res.Chats {
		if conv := ToConversation(w); conv.ID != "" {
			out = append(out, conv)
		}
	}
	models.SortConversations(out)
	return out, nil
}

// Messages pulls a conversation's history, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	var res MessagesResult
	if err := c.Call(ctx, ChannelGetChatMessages, MessagesArgs{ChatID: conversationID, Limit: limit}, &res); err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(res.Messages))
	for _, w := range res.Messages {
		out = append(out, ToMessage(w, fn.None[time.Time]()))
	}
	return out, nil
}

// ConnectionStatus pulls the host's connection state.
func (c *Client) ConnectionStatus(ctx context.Context) (models.ConnectionStatus, error) {
	var res StatusResult
	if err := c.Call(ctx, ChannelGetConnectionStatus, nil, &res); err != nil {
		return models.ConnectionUnknown, err
	}
	return models.ParseConnectionStatus(res.Status), nil
}

// Interventions pulls every active intervention.
func (c *Client) Interventions(ctx context.Context) ([]models.InterventionState, error) {
	var res InterventionsResult
	if err := c.Call(ctx, ChannelGetAllHumanInterventions, nil, &res); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.InterventionState, 0, len(res.Interventions))
	for _, w := range res.Interventions {
		if w.ChatID == "" {
			continue
		}
		out = append(out, ToIntervention(w.ChatID, w, now))
	}
	return out, nil
}

// InterventionDetails pulls one conversation's intervention state.
func (c *Client) InterventionDetails(ctx context.Context, conversationID string) (models.InterventionState, error) {
	var res InterventionResult
	if err := c.Call(ctx, ChannelGetInterventionDetails, ChatArgs{ChatID: conversationID}, &res); err != nil {
		return models.InterventionState{}, err
	}
	return interventionFrom(conversationID, res), nil
}

// ToggleIntervention flips intervention, sending the displayed state as a
// precondition, and returns the host's post-toggle details.
func (c *Client) ToggleIntervention(ctx context.Context, conversationID string, currentlyActive bool) (models.InterventionState, error) {
	var res InterventionResult
	args := ToggleInterventionArgs{ChatID: conversationID, CurrentlyActive: currentlyActive}
	if err := c.Call(ctx, ChannelToggleHumanIntervention, args, &res); err != nil {
		return models.InterventionState{}, err
	}
	return interventionFrom(conversationID, res), nil
}

func interventionFrom(conversationID string, res InterventionResult) models.InterventionState {
	now := time.Now()
	if res.Details == nil {
		return models.InterventionState{ConversationID: conversationID, AsOf: now}
	}
	return ToIntervention(conversationID, *res.Details, now)
}

// AIModeStatus pulls a conversation's AI mode.
func (c *Client) AIModeStatus(ctx context.Context, conversationID string) (models.AIModeStatus, error) {
	var res AIModeResult
	if err := c.Call(ctx, ChannelGetAIModeStatus, ChatArgs{ChatID: conversationID}, &res); err != nil {
		return models.AIModeStatus{}, err
	}
	return aiModeFrom(conversationID, res), nil
}

// SetAIMode requests an AI mode change and returns the resulting status.
func (c *Client) SetAIMode(ctx context.Context, conversationID string, active bool) (models.AIModeStatus, error) {
	var res AIModeResult
	if err := c.Call(ctx, ChannelSetAIMode, SetAIModeArgs{ChatID: conversationID, Active: active}, &res); err != nil {
		return models.AIModeStatus{}, err
	}
	return aiModeFrom(conversationID, res), nil
}

func aiModeFrom(conversationID string, res AIModeResult) models.AIModeStatus {
	return models.AIModeStatus{
		ConversationID: conversationID,
		Active:         res.Active,
		IsGroup:        res.IsGroup,
		CanToggle:      res.CanToggle,
		Reason:         res.Reason,
	}
}

// ActiveFollowUps pulls every pending follow-up.
func (c *Client) ActiveFollowUps(ctx context.Context) ([]models.FollowUp, error) {
	var res FollowUpsResult
	if err := c.Call(ctx, ChannelGetActiveFollowUps, nil, &res); err != nil {
		return nil, err
	}
	out := make([]models.FollowUp, 0, len(res.FollowUps))
	for _, w := range res.FollowUps {
		if f, ok := ToFollowUp(w); ok {
			out = append(out, f)
		}
	}
	models.SortFollowUps(out)
	return out, nil
}

// FollowUpCheckInfo pulls a conversation's scheduled eligibility check.
func (c *Client) FollowUpCheckInfo(ctx context.Context, conversationID string) (fn.Option[models.EligibilityCheck], error) {
	var res CheckInfoResult
	if err := c.Call(ctx, ChannelGetFollowUpCheckInfo, ChatArgs{ChatID: conversationID}, &res); err != nil {
		return fn.None[models.EligibilityCheck](), err
	}
	if !res.Scheduled {
		return fn.None[models.EligibilityCheck](), nil
	}
	at := timeline.Normalize(res.CheckTime)
	if at.IsNone() {
		return fn.None[models.EligibilityCheck](), nil
	}
	return fn.Some(models.EligibilityCheck{
		ConversationID: conversationID,
		CheckAt:        at.UnwrapOr(time.Time{}),
	}), nil
}

// CheckFollowUpNow runs a manual eligibility check.
func (c *Client) CheckFollowUpNow(ctx context.Context, conversationID string) (CheckOutcome, error) {
	var res CheckNowResult
	if err := c.Call(ctx, ChannelCheckFollowUpNow, ChatArgs{ChatID: conversationID}, &res); err != nil {
		return CheckOutcome{}, err
	}
	msg := res.Message
	if msg == "" {
		msg = res.Reason
	}
	return CheckOutcome{HasFollowUp: res.HasFollowUp, Message: msg}, nil
}

// CancelFollowUp cancels one follow-up.
func (c *Client) CancelFollowUp(ctx context.Context, conversationID, followUpID string) error {
	return c.Call(ctx, ChannelCancelFollowUp, FollowUpArgs{ChatID: conversationID, FollowUpID: followUpID}, nil)
}

// SendFollowUpNow sends one follow-up immediately.
func (c *Client) SendFollowUpNow(ctx context.Context, conversationID, followUpID string) error {
	return c.Call(ctx, ChannelSendFollowUpNow, FollowUpArgs{ChatID: conversationID, FollowUpID: followUpID}, nil)
}

// SendMessage sends a text message and returns the host's message id.
func (c *Client) SendMessage(ctx context.Context, conversationID, body string) (string, error) {
	var res SendMessageResult
	if err := c.Call(ctx, ChannelSendMessage, SendMessageArgs{ChatID: conversationID, Message: body}, &res); err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// ClearConversation asks the host to clear a conversation.
func (c *Client) ClearConversation(ctx context.Context, conversationID string) error {
	return c.Call(ctx, ChannelClearChatConversation, ChatArgs{ChatID: conversationID}, nil)
}

// CancelAllFollowUps cancels every follow-up of a conversation.
func (c *Client) CancelAllFollowUps(ctx context.Context, conversationID string) (int, error) {
	var res CancelAllResult
	if err := c.Call(ctx, ChannelCancelAllFollowUps, ChatArgs{ChatID: conversationID}, &res); err != nil {
		return 0, err
	}
	return res.Cancelled, nil
}
