package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/modes"
)

// Commands validate their arguments synchronously and run against the host
// asynchronously. Success re-pulls the affected state; failure surfaces a
// notification and leaves local state as it was.

// CancelFollowUp cancels one scheduled follow-up.
func (e *Engine) CancelFollowUp(conversationID, followUpID string) error {
	if err := models.ValidateFollowUpTarget(conversationID, followUpID); err != nil {
		return err
	}
	e.post(func() {
		e.followUpCommand(models.CategoryCancelFollowUp, conversationID, followUpID,
			e.host.CancelFollowUp, "Follow-up cancelled")
	})
	return nil
}

// SendFollowUpNow sends one scheduled follow-up immediately.
func (e *Engine) SendFollowUpNow(conversationID, followUpID string) error {
	if err := models.ValidateFollowUpTarget(conversationID, followUpID); err != nil {
		return err
	}
	e.post(func() {
		e.followUpCommand(models.CategorySendFollowUp, conversationID, followUpID,
			e.host.SendFollowUpNow, "Follow-up sent")
	})
	return nil
}

func (e *Engine) followUpCommand(
	category models.NotificationCategory,
	conversationID, followUpID string,
	call func(ctx context.Context, conversationID, followUpID string) error,
	successText string,
) {
	if e.board.Schedule(conversationID).InFlight(followUpID) {
		return
	}
	e.board.Schedule(conversationID).BeginCommand(followUpID)
	e.publish()

	e.goHost(func(ctx context.Context) func() {
		err := call(ctx, conversationID, followUpID)
		return func() {
			e.board.Schedule(conversationID).EndCommand(followUpID)
			if err != nil {
				e.commandFailed(category, conversationID, err)
				e.publish()
				return
			}
			e.notify(conversationID, category, outcomeSuccess, models.SeveritySuccess, successText)
			e.pullFollowUps()
			if category == models.CategorySendFollowUp && conversationID == e.selected {
				e.pullMessages(conversationID)
			}
			e.pullChats()
			e.publish()
		}
	})
}

// CancelAllFollowUps cancels every follow-up of a conversation.
func (e *Engine) CancelAllFollowUps(conversationID string) error {
	if err := models.ValidateConversationID(conversationID); err != nil {
		return err
	}
	e.post(func() {
		sched := e.board.Schedule(conversationID)
		var ids []string
		for _, f := range sched.FollowUps() {
			if !sched.InFlight(f.ID) {
				sched.BeginCommand(f.ID)
				ids = append(ids, f.ID)
			}
		}
		e.publish()

		e.goHost(func(ctx context.Context) func() {
			n, err := e.host.CancelAllFollowUps(ctx, conversationID)
			return func() {
				sched := e.board.Schedule(conversationID)
				for _, id := range ids {
					sched.EndCommand(id)
				}
				if err != nil {
					e.commandFailed(models.CategoryCancelAllFollowUps, conversationID, err)
					e.publish()
					return
				}
				e.notify(conversationID, models.CategoryCancelAllFollowUps, outcomeSuccess,
					models.SeveritySuccess, cancelledText(n))
				e.pullFollowUps()
				e.pullCheckInfo(conversationID)
				e.publish()
			}
		})
	})
	return nil
}

// CheckNow asks the host to evaluate follow-up eligibility immediately. Any
// pending check is discarded at once; a failed request re-pulls it.
func (e *Engine) CheckNow(conversationID string) error {
	if err := models.ValidateConversationID(conversationID); err != nil {
		return err
	}
	e.post(func() {
		e.board.Schedule(conversationID).ClearCheck()
		e.guard.invalidate(pullCheckInfo, conversationID)
		e.publish()

		e.goHost(func(ctx context.Context) func() {
			out, err := e.host.CheckFollowUpNow(ctx, conversationID)
			return func() {
				if err != nil {
					e.commandFailed(models.CategoryManualCheck, conversationID, err)
					e.pullCheckInfo(conversationID)
					e.publish()
					return
				}
				outcome := "not-needed"
				if out.HasFollowUp {
					outcome = "scheduled"
				}
				e.notify(conversationID, models.CategoryManualCheck, outcome,
					checkSeverity(true, out.HasFollowUp),
					checkText(true, out.HasFollowUp, out.Message, ""))
				e.pullFollowUps()
				e.pullCheckInfo(conversationID)
				e.publish()
			}
		})
	})
	return nil
}

// ToggleAI flips AI mode. It is ignored while a toggle for the conversation
// is in flight.
func (e *Engine) ToggleAI(conversationID string) error {
	if err := models.ValidateConversationID(conversationID); err != nil {
		return err
	}
	e.post(func() {
		desired, err := e.modes.BeginAIToggle(conversationID)
		switch {
		case errors.Is(err, modes.ErrToggleInFlight):
			e.logger.Debug().Str("conversation_id", conversationID).Msg("ai toggle already in flight")
			return
		case err != nil:
			e.notify(conversationID, models.CategoryAIMode, "not-allowed", models.SeverityWarning,
				notAllowedText(err))
			e.publish()
			return
		}
		e.guard.invalidate(pullAIStatus, conversationID)
		e.publish()

		e.goHost(func(ctx context.Context) func() {
			status, err := e.host.SetAIMode(ctx, conversationID, desired)
			return func() {
				if err != nil {
					e.modes.EndAIToggle(conversationID, fn.None[models.AIModeStatus]())
					e.commandFailed(models.CategoryAIMode, conversationID, err)
					e.publish()
					return
				}
				e.modes.EndAIToggle(conversationID, fn.Some(status))
				text := "AI responses disabled"
				if status.Active {
					text = "AI responses enabled"
				}
				e.notify(conversationID, models.CategoryAIMode, outcomeSuccess, models.SeveritySuccess, text)
				e.pullIntervention(conversationID)
				e.publish()
			}
		})
	})
	return nil
}

// ToggleIntervention starts or ends a human takeover. The displayed active
// flag is sent as a precondition; the host rejects the toggle when its state
// differs.
func (e *Engine) ToggleIntervention(conversationID string) error {
	if err := models.ValidateConversationID(conversationID); err != nil {
		return err
	}
	e.post(func() {
		current, err := e.modes.BeginInterventionToggle(conversationID)
		if err != nil {
			e.logger.Debug().Str("conversation_id", conversationID).Msg("intervention toggle already in flight")
			return
		}
		e.guard.invalidate(pullIntervention, conversationID)
		e.guard.invalidate(pullInterventions, "")
		e.publish()

		e.goHost(func(ctx context.Context) func() {
			state, err := e.host.ToggleIntervention(ctx, conversationID, current)
			return func() {
				if err != nil {
					e.modes.EndInterventionToggle(conversationID, fn.None[models.InterventionState]())
					e.commandFailed(models.CategoryIntervention, conversationID, err)
					e.pullIntervention(conversationID)
					e.publish()
					return
				}
				state.AsOf = e.loop.Now()
				e.modes.EndInterventionToggle(conversationID, fn.Some(state))
				text := "AI responses resumed"
				if state.Active {
					text = "You are now handling this conversation"
				}
				e.notify(conversationID, models.CategoryIntervention, outcomeSuccess, models.SeveritySuccess, text)
				e.pullAIStatus(conversationID)
				e.publish()
			}
		})
	})
	return nil
}

// SendMessage sends a text message. Sending starts a temporary intervention
// on the host, so intervention and AI status are re-pulled afterwards.
func (e *Engine) SendMessage(conversationID, body string) error {
	if err := models.ValidateOutgoing(conversationID, body); err != nil {
		return err
	}
	e.post(func() {
		e.goHost(func(ctx context.Context) func() {
			_, err := e.host.SendMessage(ctx, conversationID, body)
			return func() {
				if err != nil {
					e.commandFailed(models.CategorySendMessage, conversationID, err)
					e.publish()
					return
				}
				if conversationID == e.selected {
					e.pullMessages(conversationID)
				}
				e.pullChats()
				e.pullIntervention(conversationID)
				e.pullAIStatus(conversationID)
				e.pullFollowUps()
				e.publish()
			}
		})
	})
	return nil
}

// ClearConversation deletes a conversation's history on the host.
func (e *Engine) ClearConversation(conversationID string) error {
	if err := models.ValidateConversationID(conversationID); err != nil {
		return err
	}
	e.post(func() {
		e.goHost(func(ctx context.Context) func() {
			err := e.host.ClearConversation(ctx, conversationID)
			return func() {
				if err != nil {
					e.commandFailed(models.CategoryClearChat, conversationID, err)
					e.publish()
					return
				}
				e.board.Forget(conversationID)
				e.modes.Forget(conversationID)
				if conversationID == e.selected {
					e.guard.invalidate(pullMessages, conversationID)
					e.timeline.reset(conversationID)
					e.pullMessages(conversationID)
				}
				e.notify(conversationID, models.CategoryClearChat, outcomeSuccess, models.SeveritySuccess,
					"Conversation cleared")
				e.pullChats()
				e.pullFollowUps()
				e.pullIntervention(conversationID)
				e.pullAIStatus(conversationID)
				e.publish()
			}
		})
	})
	return nil
}

// commandFailed surfaces a command failure. Host errors carry the host's
// message; transport errors get a generic text since the details are only
// useful in logs.
func (e *Engine) commandFailed(category models.NotificationCategory, conversationID string, err error) {
	if he, ok := host.AsHostError(err); ok {
		e.logger.Info().
			Str("conversation_id", conversationID).
			Str("category", string(category)).
			Str("reason", he.Message).
			Msg("host rejected command")
		e.notify(conversationID, category, outcomeFailed, models.SeverityError, he.Message)
		return
	}
	e.logger.Warn().
		Err(err).
		Str("conversation_id", conversationID).
		Str("category", string(category)).
		Bool("timeout", isTimeout(err)).
		Msg("command failed")
	e.notify(conversationID, category, outcomeUnreachable, models.SeverityError, unreachableText)
}

func isTimeout(err error) bool {
	var te *host.TransportError
	return errors.As(err, &te) && te.Timeout()
}

const (
	outcomeSuccess     = "success"
	outcomeFailed      = "failed"
	outcomeUnreachable = "unreachable"

	unreachableText = "Could not reach the host. Please try again."
)

func notAllowedText(err error) string {
	reason := strings.TrimPrefix(err.Error(), modes.ErrToggleNotAllowed.Error())
	reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
	if reason == "" {
		return "AI mode cannot be changed for this conversation"
	}
	return reason
}

func cancelledText(n int) string {
	switch n {
	case 0:
		return "No follow-ups to cancel"
	case 1:
		return "Cancelled 1 follow-up"
	default:
		return fmt.Sprintf("Cancelled %d follow-ups", n)
	}
}

func checkSeverity(success, hasFollowUp bool) models.Severity {
	switch {
	case !success:
		return models.SeverityError
	case hasFollowUp:
		return models.SeveritySuccess
	default:
		return models.SeverityInfo
	}
}

func checkText(success, hasFollowUp bool, message, reason string) string {
	for _, s := range []string{message, reason} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	switch {
	case !success:
		return "Follow-up check failed"
	case hasFollowUp:
		return "Follow-up scheduled"
	default:
		return "No follow-up needed"
	}
}

func statusText(status models.ConnectionStatus) string {
	switch status {
	case models.ConnectionOpen:
		return "Connected"
	case models.ConnectionClosedByUser:
		return "Disconnected"
	case models.ConnectionDisconnectedValidation:
		return "Disconnected: session needs validation"
	case models.ConnectionDisconnectedByError:
		return "Disconnected by an error"
	default:
		return "Connection status unknown"
	}
}
