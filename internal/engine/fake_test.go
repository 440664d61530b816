package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/models"
)

// fakeHost answers from in-memory state and records every call.
type fakeHost struct {
	mu sync.Mutex

	status        models.ConnectionStatus
	chats         []models.Conversation
	messages      map[string][]models.Message
	ai            map[string]models.AIModeStatus
	interventions map[string]models.InterventionState
	followUps     []models.FollowUp
	checks        map[string]models.EligibilityCheck
	checkOutcome  host.CheckOutcome
	cancelled     int

	errs  map[string]error
	calls []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		status:        models.ConnectionOpen,
		messages:      make(map[string][]models.Message),
		ai:            make(map[string]models.AIModeStatus),
		interventions: make(map[string]models.InterventionState),
		checks:        make(map[string]models.EligibilityCheck),
		errs:          make(map[string]error),
	}
}

func (f *fakeHost) record(name, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conversationID != "" {
		name = name + ":" + conversationID
	}
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return err
	}
	return nil
}

func (f *fakeHost) fail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[call] = err
}

func (f *fakeHost) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeHost) setMessages(conversationID string, msgs ...models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[conversationID] = msgs
}

func (f *fakeHost) setAI(status models.AIModeStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ai[status.ConversationID] = status
}

func (f *fakeHost) setIntervention(state models.InterventionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interventions[state.ConversationID] = state
}

func (f *fakeHost) setFollowUps(items ...models.FollowUp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = items
}

func (f *fakeHost) setCheck(check models.EligibilityCheck) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[check.ConversationID] = check
}

func (f *fakeHost) Chats(ctx context.Context) ([]models.Conversation, error) {
	if err := f.record("chats", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Conversation(nil), f.chats...), nil
}

func (f *fakeHost) Messages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if err := f.record("messages", conversationID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeHost) ConnectionStatus(ctx context.Context) (models.ConnectionStatus, error) {
	if err := f.record("status", ""); err != nil {
		return models.ConnectionUnknown, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeHost) Interventions(ctx context.Context) ([]models.InterventionState, error) {
	if err := f.record("interventions", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InterventionState
	for _, s := range f.interventions {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeHost) InterventionDetails(ctx context.Context, conversationID string) (models.InterventionState, error) {
	if err := f.record("intervention", conversationID); err != nil {
		return models.InterventionState{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.interventions[conversationID]
	s.ConversationID = conversationID
	return s, nil
}

func (f *fakeHost) ToggleIntervention(ctx context.Context, conversationID string, currentlyActive bool) (models.InterventionState, error) {
	if err := f.record(fmt.Sprintf("toggle-intervention:%s:%t", conversationID, currentlyActive), ""); err != nil {
		return models.InterventionState{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.interventions[conversationID]
	if s.Active != currentlyActive {
		return models.InterventionState{}, &host.HostError{Channel: host.ChannelToggleHumanIntervention, Message: "intervention state changed"}
	}
	s = models.InterventionState{ConversationID: conversationID, Active: !currentlyActive, Manual: !currentlyActive}
	f.interventions[conversationID] = s
	return s, nil
}

func (f *fakeHost) AIModeStatus(ctx context.Context, conversationID string) (models.AIModeStatus, error) {
	if err := f.record("ai", conversationID); err != nil {
		return models.AIModeStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.ai[conversationID]
	if !ok {
		s = models.AIModeStatus{ConversationID: conversationID, Active: true, CanToggle: true}
	}
	return s, nil
}

func (f *fakeHost) SetAIMode(ctx context.Context, conversationID string, active bool) (models.AIModeStatus, error) {
	if err := f.record(fmt.Sprintf("set-ai:%s:%t", conversationID, active), ""); err != nil {
		return models.AIModeStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := models.AIModeStatus{ConversationID: conversationID, Active: active, CanToggle: true}
	f.ai[conversationID] = s
	return s, nil
}

func (f *fakeHost) ActiveFollowUps(ctx context.Context) ([]models.FollowUp, error) {
	if err := f.record("follow-ups", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.FollowUp(nil), f.followUps...), nil
}

func (f *fakeHost) FollowUpCheckInfo(ctx context.Context, conversationID string) (fn.Option[models.EligibilityCheck], error) {
	if err := f.record("check-info", conversationID); err != nil {
		return fn.None[models.EligibilityCheck](), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.checks[conversationID]; ok {
		return fn.Some(c), nil
	}
	return fn.None[models.EligibilityCheck](), nil
}

func (f *fakeHost) CheckFollowUpNow(ctx context.Context, conversationID string) (host.CheckOutcome, error) {
	if err := f.record("check-now", conversationID); err != nil {
		return host.CheckOutcome{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.checks, conversationID)
	return f.checkOutcome, nil
}

func (f *fakeHost) CancelFollowUp(ctx context.Context, conversationID, followUpID string) error {
	if err := f.record("cancel:"+conversationID+":"+followUpID, ""); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = removeFollowUp(f.followUps, followUpID)
	return nil
}

func (f *fakeHost) SendFollowUpNow(ctx context.Context, conversationID, followUpID string) error {
	if err := f.record("send-now:"+conversationID+":"+followUpID, ""); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = removeFollowUp(f.followUps, followUpID)
	return nil
}

func (f *fakeHost) CancelAllFollowUps(ctx context.Context, conversationID string) (int, error) {
	if err := f.record("cancel-all", conversationID); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.followUps[:0]
	n := 0
	for _, fu := range f.followUps {
		if fu.ConversationID == conversationID {
			n++
			continue
		}
		kept = append(kept, fu)
	}
	f.followUps = kept
	return n, nil
}

func (f *fakeHost) SendMessage(ctx context.Context, conversationID, body string) (string, error) {
	if err := f.record("send", conversationID); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("out-%d", len(f.messages[conversationID])+1)
	f.messages[conversationID] = append(f.messages[conversationID], models.Message{
		ID:       id,
		FromSelf: true,
		Content:  models.Content{Kind: models.ContentText, Text: body},
	})
	f.interventions[conversationID] = models.InterventionState{
		ConversationID: conversationID,
		Active:         true,
		Remaining:      30 * time.Minute,
	}
	return id, nil
}

func (f *fakeHost) ClearConversation(ctx context.Context, conversationID string) error {
	if err := f.record("clear", conversationID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, conversationID)
	f.followUps = removeConversation(f.followUps, conversationID)
	return nil
}

func removeFollowUp(items []models.FollowUp, id string) []models.FollowUp {
	out := items[:0]
	for _, f := range items {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

func removeConversation(items []models.FollowUp, conversationID string) []models.FollowUp {
	out := items[:0]
	for _, f := range items {
		if f.ConversationID != conversationID {
			out = append(out, f)
		}
	}
	return out
}

func (f *fakeHost) clearCheck(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.checks, conversationID)
}
