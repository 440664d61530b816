// Package hostsim is a development host process. It answers every host
// channel from a SQLite store and pushes events to connected clients. It has
// no real scheduler: due checks and follow-ups fire when Sweep runs.
package hostsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/chatsync/internal/db"
	"github.com/tOgg1/chatsync/internal/events"
	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/logging"
	"github.com/tOgg1/chatsync/internal/models"
)

const (
	defaultCheckDelay           = 10 * time.Minute
	defaultFollowUpDelay        = time.Hour
	defaultInterventionDuration = 30 * time.Minute
	defaultJournalLimit         = 1000

	groupReason      = "AI responses are not available for group conversations"
	followUpText     = "Just checking in. Any thoughts on my last message?"
	staleToggleError = "intervention state changed, refresh and try again"
)

// Config configures the simulated host.
type Config struct {
	// DBPath is the SQLite file; empty means in-memory.
	DBPath string

	// CheckDelay is how long after a peer message the eligibility check runs.
	CheckDelay time.Duration

	// FollowUpDelay is how long after a positive check the follow-up sends.
	FollowUpDelay time.Duration

	// InterventionDuration is how long a reply from the user suspends AI.
	InterventionDuration time.Duration

	// JournalLimit caps the push journal; Sweep trims the oldest entries.
	JournalLimit int

	// Store tunes how writes wait on and retry a locked database.
	Store db.Options

	// Now is the host clock. Defaults to time.Now.
	Now func() time.Time
}

// Host is the simulated privileged host.
type Host struct {
	cfg    Config
	logger zerolog.Logger

	db            *db.DB
	chats         *db.ChatRepository
	messages      *db.MessageRepository
	followUps     *db.FollowUpRepository
	interventions *db.InterventionRepository
	pushes        *db.PushRepository

	mu       sync.Mutex
	status   models.ConnectionStatus
	handlers []func(name events.Name, payload any)
}

// New opens the store and returns a host with status open.
func New(cfg Config) (*Host, error) {
	if cfg.CheckDelay <= 0 {
		cfg.CheckDelay = defaultCheckDelay
	}
	if cfg.FollowUpDelay <= 0 {
		cfg.FollowUpDelay = defaultFollowUpDelay
	}
	if cfg.InterventionDuration <= 0 {
		cfg.InterventionDuration = defaultInterventionDuration
	}
	if cfg.JournalLimit <= 0 {
		cfg.JournalLimit = defaultJournalLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	store, err := db.OpenWithOptions(cfg.DBPath, cfg.Store)
	if err != nil {
		return nil, err
	}

	return &Host{
		cfg:           cfg,
		logger:        logging.Component("hostsim"),
		db:            store,
		chats:         db.NewChatRepository(store),
		messages:      db.NewMessageRepository(store),
		followUps:     db.NewFollowUpRepository(store),
		interventions: db.NewInterventionRepository(store),
		pushes:        db.NewPushRepository(store),
		status:        models.ConnectionOpen,
	}, nil
}

// Close closes the store.
func (h *Host) Close() error {
	return h.db.Close()
}

// OnPush registers a push sink. The server registers one per listener.
func (h *Host) OnPush(fn func(name events.Name, payload any)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

func (h *Host) push(name events.Name, payload any) {
	h.journal(name, payload)

	h.mu.Lock()
	handlers := append([]func(events.Name, any){}, h.handlers...)
	h.mu.Unlock()
	for _, fn := range handlers {
		fn(name, payload)
	}
}

// journal records a push. A journal failure never blocks delivery.
func (h *Host) journal(name events.Name, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", string(name)).Msg("failed to encode push for journal")
		return
	}
	var keys struct {
		ChatID string `json:"chatId"`
	}
	_ = json.Unmarshal(data, &keys)

	entry := &db.Push{Name: string(name), ChatID: keys.ChatID, Payload: data, SentAt: h.cfg.Now().UTC()}
	if err := h.pushes.Append(context.Background(), entry); err != nil {
		h.logger.Warn().Err(err).Str("event", string(name)).Msg("failed to journal push")
	}
}

// RecentPushes returns the newest journaled pushes, oldest first.
func (h *Host) RecentPushes(ctx context.Context, limit int) ([]*db.Push, error) {
	return h.pushes.Recent(ctx, limit)
}

// SeedChat creates or renames a chat.
func (h *Host) SeedChat(ctx context.Context, id, name string, group bool) error {
	return h.chats.Upsert(ctx, &db.Chat{ID: id, Name: name, IsGroup: group, AIActive: !group, CreatedAt: h.cfg.Now().UTC()})
}

// SeedFollowUp stores a follow-up directly.
func (h *Host) SeedFollowUp(ctx context.Context, chatID string, at time.Time, text string, sequence, total int) (db.FollowUp, error) {
	f := db.FollowUp{ChatID: chatID, ScheduledAt: at, Message: text, Sequence: sequence, Total: total}
	if err := h.followUps.Create(ctx, &f); err != nil {
		return db.FollowUp{}, err
	}
	return f, nil
}

// SeedCheck schedules an eligibility check directly.
func (h *Host) SeedCheck(ctx context.Context, chatID string, at time.Time) error {
	return h.followUps.SetCheck(ctx, chatID, at)
}

// Receive stores a message from the peer, schedules an eligibility check
// and pushes new-message.
func (h *Host) Receive(ctx context.Context, chatID, body string) (db.Message, error) {
	msg := db.Message{ChatID: chatID, Body: body, Timestamp: h.cfg.Now().UTC()}
	if err := h.messages.Create(ctx, &msg); err != nil {
		return db.Message{}, err
	}
	if err := h.followUps.SetCheck(ctx, chatID, h.cfg.Now().Add(h.cfg.CheckDelay)); err != nil {
		return db.Message{}, err
	}
	h.pushMessage(msg)
	return msg, nil
}

// SetStatus changes the connection status and pushes status-update.
func (h *Host) SetStatus(status models.ConnectionStatus, reason string) {
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
	h.push(events.StatusUpdate, host.StatusPayload{Status: string(status), Reason: reason})
}

// Sweep runs due automatic checks and sends due follow-ups.
func (h *Host) Sweep(ctx context.Context) error {
	now := h.cfg.Now()

	checks, err := h.followUps.ListDueChecks(ctx, now)
	if err != nil {
		return err
	}
	for _, c := range checks {
		if _, err := h.runCheck(ctx, c.ChatID, true); err != nil {
			h.logger.Warn().Interface("error", err).Str("chat_id", c.ChatID).Msg("automatic check failed")
		}
	}

	due, err := h.followUps.ListDue(ctx, now)
	if err != nil {
		return err
	}
	for _, f := range due {
		if err := h.sendFollowUp(ctx, f); err != nil {
			h.logger.Warn().Err(err).Str("follow_up_id", f.ID).Msg("follow-up send failed")
		}
	}

	n, err := h.pushes.DeleteExcess(ctx, h.cfg.JournalLimit)
	if err != nil {
		return err
	}
	if n > 0 {
		h.logger.Debug().Int64("deleted", n).Msg("trimmed push journal")
	}
	return nil
}

// Handle answers one request. Unknown channels and malformed args produce
// a protocol error; business failures produce success false.
func (h *Host) Handle(ctx context.Context, req host.Request) (any, *host.WireError) {
	if !knownChannel(req.Channel) {
		return nil, &host.WireError{Code: "unknown_channel", Message: fmt.Sprintf("unknown channel %q", req.Channel)}
	}

	switch req.Channel {
	case host.ChannelGetChats:
		return h.getChats(ctx)
	case host.ChannelGetConnectionStatus:
		h.mu.Lock()
		status := h.status
		h.mu.Unlock()
		return host.StatusResult{Envelope: ok(), Status: string(status)}, nil
	case host.ChannelGetAllHumanInterventions:
		return h.getAllInterventions(ctx)
	case host.ChannelGetActiveFollowUps:
		return h.getActiveFollowUps(ctx)
	}

	var args struct {
		ChatID          string `json:"chatId"`
		FollowUpID      string `json:"followUpId"`
		Limit           int    `json:"limit"`
		Active          bool   `json:"active"`
		CurrentlyActive bool   `json:"currentlyActive"`
		Message         string `json:"message"`
	}
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, &host.WireError{Code: "bad_request", Message: fmt.Sprintf("invalid args: %v", err)}
		}
	}
	args.ChatID = strings.TrimSpace(args.ChatID)
	if args.ChatID == "" {
		return fail("chatId is required"), nil
	}
	chat, err := h.chats.Get(ctx, args.ChatID)
	if errors.Is(err, db.ErrChatNotFound) {
		return fail("chat not found"), nil
	}
	if err != nil {
		return nil, internalError(err)
	}

	switch req.Channel {
	case host.ChannelGetChatMessages:
		return h.getMessages(ctx, chat.ID, args.Limit)
	case host.ChannelGetInterventionDetails:
		return h.interventionDetails(ctx, chat.ID)
	case host.ChannelToggleHumanIntervention:
		return h.toggleIntervention(ctx, chat.ID, args.CurrentlyActive)
	case host.ChannelGetAIModeStatus:
		return h.aiMode(ctx, chat)
	case host.ChannelSetAIMode:
		return h.setAIMode(ctx, chat, args.Active)
	case host.ChannelGetFollowUpCheckInfo:
		return h.checkInfo(ctx, chat.ID)
	case host.ChannelCheckFollowUpNow:
		return h.runCheck(ctx, chat.ID, false)
	case host.ChannelCancelFollowUp:
		return h.cancelFollowUp(ctx, chat.ID, args.FollowUpID)
	case host.ChannelSendFollowUpNow:
		return h.sendFollowUpNow(ctx, chat.ID, args.FollowUpID)
	case host.ChannelSendMessage:
		return h.sendMessage(ctx, chat.ID, args.Message)
	case host.ChannelClearChatConversation:
		if err := h.chats.Clear(ctx, chat.ID); err != nil {
			return nil, internalError(err)
		}
		return host.Envelope{Success: true}, nil
	case host.ChannelCancelAllFollowUps:
		n, err := h.followUps.DeleteByChat(ctx, chat.ID)
		if err != nil {
			return nil, internalError(err)
		}
		return host.CancelAllResult{Envelope: ok(), Cancelled: n}, nil
	default:
		return nil, &host.WireError{Code: "unknown_channel", Message: fmt.Sprintf("unknown channel %q", req.Channel)}
	}
}

func knownChannel(ch host.Channel) bool {
	for _, c := range host.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

func ok() host.Envelope {
	return host.Envelope{Success: true}
}

func fail(message string) host.Envelope {
	return host.Envelope{Success: false, Message: message}
}

func internalError(err error) *host.WireError {
	return &host.WireError{Code: "internal", Message: err.Error(), Retryable: true}
}
