// Package engine keeps the client's mirror of host state. All state is owned
// by a single event loop; host round trips run off the loop and their
// completions are posted back to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tOgg1/chatsync/internal/events"
	"github.com/tOgg1/chatsync/internal/followup"
	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/logging"
	"github.com/tOgg1/chatsync/internal/loop"
	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/modes"
	"github.com/tOgg1/chatsync/internal/notify"
)

// Subscription ids. Re-subscribing with the same id replaces the previous
// registration.
const (
	pushSubscription      = "engine.push"
	selectionSubscription = "engine.selection"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("engine closed")
)

// Engine mirrors host state and runs user commands against the host.
type Engine struct {
	cfg    Config
	host   Host
	loop   loop.Dispatcher
	bus    events.Publisher
	logger zerolog.Logger

	// Loop-owned state.
	gate       *notify.Gate
	board      *followup.Board
	modes      *modes.Arbiter
	guard      *guard
	registry   *registry
	timeline   *timelineStore
	status     models.ConnectionStatus
	selected   string
	limiter    *rate.Limiter
	suppressed int

	view atomic.Pointer[View]

	mu        sync.Mutex
	started   bool
	closed    bool
	timers    []loop.Handle
	pushSub   *events.Subscription
	selectSub *events.Subscription
	listeners []func(View)
}

// New creates an engine. Nothing runs until Start.
func New(h Host, d loop.Dispatcher, bus events.Publisher, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:      cfg,
		host:     h,
		loop:     d,
		bus:      bus,
		logger:   logging.Component("engine"),
		gate:     notify.NewGate(cfg.ToastDuration),
		board:    followup.NewBoard(),
		modes:    modes.NewArbiter(),
		guard:    newGuard(),
		registry: &registry{},
		timeline: newTimelineStore(),
		status:   models.ConnectionUnknown,
		limiter:  rate.NewLimiter(rate.Every(cfg.LogEvery), cfg.LogBurst),
	}
	v := View{Connection: models.ConnectionUnknown}
	e.view.Store(&v)
	return e
}

// Start subscribes to host pushes, starts the periodic pulls and issues the
// initial pulls.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}

	sub, err := e.bus.Subscribe(pushSubscription, events.Filter{}, e.onPush)
	if err != nil {
		return fmt.Errorf("subscribe to pushes: %w", err)
	}
	e.pushSub = sub
	e.started = true

	e.timers = append(e.timers,
		e.loop.Every(e.cfg.StatusInterval, e.pullStatus),
		e.loop.Every(e.cfg.ReconcileInterval, e.reconcile),
		e.loop.Every(e.cfg.TickInterval, e.tick),
	)

	initial := e.cfg.InitialSelection
	e.loop.Post(func() {
		e.refreshAll()
		if initial != "" {
			e.selectConversation(initial)
		}
		e.publish()
	})
	e.logger.Debug().
		Dur("status_interval", e.cfg.StatusInterval).
		Dur("reconcile_interval", e.cfg.ReconcileInterval).
		Msg("engine started")
	return nil
}

// Close stops every timer and subscription. Completions of round trips
// still in flight are ignored. The caller stops the loop afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, h := range e.timers {
		h.Stop()
	}
	e.timers = nil
	if e.pushSub != nil {
		e.pushSub.Close()
	}
	if e.selectSub != nil {
		e.selectSub.Close()
	}
	e.listeners = nil
	e.mu.Unlock()

	e.loop.Post(func() {
		e.timeline.reset("")
	})
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Snapshot returns the latest view.
func (e *Engine) Snapshot() View {
	return *e.view.Load()
}

// OnChange registers fn to receive every new view. Listeners run on the
// loop and must not block.
func (e *Engine) OnChange(fn func(View)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Select makes conversationID the selected conversation. An empty id clears
// the selection.
func (e *Engine) Select(conversationID string) {
	e.post(func() {
		e.selectConversation(conversationID)
		e.publish()
	})
}

// Refresh re-pulls everything.
func (e *Engine) Refresh() {
	e.post(func() {
		e.refreshAll()
		e.publish()
	})
}

func (e *Engine) post(fn func()) {
	if e.isClosed() {
		return
	}
	e.loop.Post(fn)
}

// publish rebuilds the view and hands it to listeners.
func (e *Engine) publish() {
	v := e.buildView(e.loop.Now())
	e.view.Store(&v)

	e.mu.Lock()
	listeners := make([]func(View), len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}

func (e *Engine) selectConversation(id string) {
	prev := e.selected
	e.selected = id
	if prev != id || e.timeline.conversationID != id {
		e.guard.invalidate(pullMessages, prev)
		e.timeline.reset(id)
	}
	e.resubscribeSelection(id)
	if id == "" {
		return
	}
	e.pullMessages(id)
	e.pullAIStatus(id)
	e.pullIntervention(id)
	e.pullCheckInfo(id)
}

// resubscribeSelection scopes the message subscription to the selected
// conversation.
func (e *Engine) resubscribeSelection(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.selectSub != nil {
		e.selectSub.Close()
		e.selectSub = nil
	}
	if id == "" {
		return
	}
	filter := events.Filter{Names: []events.Name{events.NewMessage}, ConversationID: id}
	sub, err := e.bus.Subscribe(selectionSubscription, filter, e.onSelectedMessage)
	if err != nil {
		e.logger.Error().Err(err).Str("conversation_id", id).Msg("subscribe to selected conversation")
		return
	}
	e.selectSub = sub
}

func (e *Engine) refreshAll() {
	e.pullStatus()
	e.pullChats()
	e.pullInterventions()
	e.pullFollowUps()
	if id := e.selected; id != "" {
		e.pullMessages(id)
		e.pullAIStatus(id)
		e.pullIntervention(id)
		e.pullCheckInfo(id)
	}
}

// reconcile is the periodic pull of everything pushes do not cover.
func (e *Engine) reconcile() {
	e.pullChats()
	e.pullInterventions()
	e.pullFollowUps()
	checked := make(map[string]struct{})
	if id := e.selected; id != "" {
		e.pullCheckInfo(id)
		e.pullAIStatus(id)
		checked[id] = struct{}{}
	}
	for _, id := range e.board.Active() {
		if _, ok := checked[id]; ok || e.board.State(id) != followup.StateCheckPending {
			continue
		}
		e.pullCheckInfo(id)
	}
}

// tick advances countdowns and local expiry.
func (e *Engine) tick() {
	now := e.loop.Now()
	repull := false
	for _, res := range e.board.Tick(now, e.cfg.ExpiryGrace) {
		if res.Repull {
			repull = true
		}
		if res.CheckExpired {
			e.pullCheckInfo(res.ConversationID)
		}
	}
	if repull {
		e.pullFollowUps()
	}
	for _, id := range e.modes.Tick(now) {
		e.logger.Debug().Str("conversation_id", id).Msg("intervention expired")
		e.pullIntervention(id)
		e.pullAIStatus(id)
	}
	e.gate.Sweep(now)
	e.publish()
}

func (e *Engine) onPush(ev events.Event) {
	switch ev.Name {
	case events.NewMessage:
		push, err := host.DecodeNewMessage(ev)
		e.post(func() {
			if err != nil {
				e.logBackground("decode new message", ev.ConversationID, err)
				return
			}
			e.handleNewMessage(push)
		})
	case events.StatusUpdate:
		push, err := host.DecodeStatus(ev)
		e.post(func() {
			if err != nil {
				e.logBackground("decode status", "", err)
				return
			}
			e.handleStatus(push)
		})
	case events.FollowUpCheckResult:
		push, err := host.DecodeCheckResult(ev)
		e.post(func() {
			if err != nil {
				e.logBackground("decode check result", ev.ConversationID, err)
				return
			}
			e.handleCheckResult(push)
		})
	default:
		e.logger.Debug().Str("event", string(ev.Name)).Msg("ignoring unknown push")
	}
}

// onSelectedMessage only sees new-message pushes for the selected
// conversation.
func (e *Engine) onSelectedMessage(ev events.Event) {
	push, err := host.DecodeNewMessage(ev)
	if err != nil {
		return
	}
	e.post(func() {
		if push.ConversationID == "" || push.ConversationID != e.selected {
			return
		}
		push.Message.WhenSome(func(m models.Message) {
			if e.timeline.append(m) {
				e.highlight(m.ID)
			}
		})
		e.pullMessages(push.ConversationID)
		e.publish()
	})
}

func (e *Engine) handleNewMessage(push host.NewMessagePush) {
	push.Message.WhenSome(func(m models.Message) {
		e.registry.touch(push.ConversationID, m)
	})
	e.pullChats()
	e.pullFollowUps()
	e.publish()
}

func (e *Engine) handleStatus(push host.StatusPush) {
	e.applyStatus(push.Status)
	e.publish()
}

// applyStatus records a status from either a push or a pull. Both surface
// through the same identity so one change shows once.
func (e *Engine) applyStatus(status models.ConnectionStatus) {
	if status == e.status {
		return
	}
	prev := e.status
	e.status = status
	e.logger.Info().
		Str("from", string(prev)).
		Str("to", string(status)).
		Msg("connection status changed")
	if prev == models.ConnectionUnknown {
		return
	}
	severity := models.SeverityWarning
	if status.Connected() {
		severity = models.SeveritySuccess
	}
	e.notify("", models.CategoryConnection, string(status), severity, statusText(status))
}

func (e *Engine) handleCheckResult(push host.CheckResultPush) {
	id := push.ConversationID
	if id == "" {
		return
	}
	e.board.Schedule(id).ClearCheck()
	category := models.CategoryManualCheck
	if push.Automatic {
		category = models.CategoryAutomaticCheck
	}
	e.notify(id, category, push.Outcome(), checkSeverity(push.Success, push.HasFollowUp),
		checkText(push.Success, push.HasFollowUp, push.Message, push.Reason))
	e.pullFollowUps()
	e.pullCheckInfo(id)
	e.publish()
}

// highlight marks a message as just arrived and schedules its decay.
func (e *Engine) highlight(id string) {
	if id == "" {
		return
	}
	conv := e.timeline.conversationID
	h := e.loop.AfterFunc(e.cfg.HighlightDecay, func() {
		if e.timeline.conversationID != conv {
			return
		}
		e.timeline.unhighlight(id)
		e.publish()
	})
	e.timeline.highlight(id, h)
}

func (e *Engine) notify(conversationID string, category models.NotificationCategory, outcome string, severity models.Severity, text string) {
	n := models.Notification{
		Identity: models.NotificationIdentity{
			ConversationID: conversationID,
			Category:       category,
			Outcome:        outcome,
		},
		Severity: severity,
		Text:     text,
	}
	if !e.gate.Show(n, e.loop.Now()) {
		e.logger.Debug().
			Str("identity", n.Identity.Key()).
			Msg("notification suppressed")
	}
}

// logBackground reports a failed background pull without surfacing it to
// the user. Bursts are throttled and the dropped count is reported with the
// next logged failure.
func (e *Engine) logBackground(op, conversationID string, err error) {
	if !e.limiter.Allow() {
		e.suppressed++
		return
	}
	ev := e.logger.Warn().Err(err).Str("op", op)
	if conversationID != "" {
		ev = ev.Str("conversation_id", conversationID)
	}
	if e.suppressed > 0 {
		ev = ev.Int("suppressed", e.suppressed)
		e.suppressed = 0
	}
	ev.Msg("background pull failed")
}

// goHost runs call off the loop and applies its completion on the loop
// unless the engine was closed meanwhile.
func (e *Engine) goHost(call func(ctx context.Context) func()) {
	e.loop.Go(func(ctx context.Context) func() {
		done := call(ctx)
		return func() {
			if e.isClosed() || done == nil {
				return
			}
			done()
		}
	})
}
