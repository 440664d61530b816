package engine

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/models"
)

// Host is the part of the host API the engine calls.
type Host interface {
	Chats(ctx context.Context) ([]models.Conversation, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	ConnectionStatus(ctx context.Context) (models.ConnectionStatus, error)

	Interventions(ctx context.Context) ([]models.InterventionState, error)
	InterventionDetails(ctx context.Context, conversationID string) (models.InterventionState, error)
	ToggleIntervention(ctx context.Context, conversationID string, currentlyActive bool) (models.InterventionState, error)

	AIModeStatus(ctx context.Context, conversationID string) (models.AIModeStatus, error)
	SetAIMode(ctx context.Context, conversationID string, active bool) (models.AIModeStatus, error)

	ActiveFollowUps(ctx context.Context) ([]models.FollowUp, error)
	FollowUpCheckInfo(ctx context.Context, conversationID string) (fn.Option[models.EligibilityCheck], error)
	CheckFollowUpNow(ctx context.Context, conversationID string) (host.CheckOutcome, error)
	CancelFollowUp(ctx context.Context, conversationID, followUpID string) error
	SendFollowUpNow(ctx context.Context, conversationID, followUpID string) error
	CancelAllFollowUps(ctx context.Context, conversationID string) (int, error)

	SendMessage(ctx context.Context, conversationID, body string) (string, error)
	ClearConversation(ctx context.Context, conversationID string) error
}

var _ Host = (*host.Client)(nil)
