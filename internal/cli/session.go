package cli

import (
	"context"
	"fmt"

	"github.com/tOgg1/chatsync/internal/config"
	"github.com/tOgg1/chatsync/internal/engine"
	"github.com/tOgg1/chatsync/internal/events"
	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/loop"
)

// session is one running engine wired to a host connection.
type session struct {
	client *host.Client
	bus    *events.Bus
	loop   *loop.Loop
	engine *engine.Engine
}

func newHostClient(cfg *config.Config, bus events.Publisher) *host.Client {
	return host.NewClient(host.Config{
		Addr:           cfg.Host.Addr,
		DialTimeout:    cfg.Host.DialTimeout,
		RequestTimeout: cfg.Host.RequestTimeout,
		Publisher:      bus,
	})
}

// connect dials the host once up front so an unreachable host is reported
// before anything is drawn.
func connect(ctx context.Context, client *host.Client, addr string) error {
	if err := client.Connect(ctx); err != nil {
		return &PreflightError{
			Message:  fmt.Sprintf("cannot reach host at %s: %v", addr, err),
			Hint:     "Start a host or point --host-addr at a running one",
			NextStep: "chatsync-host --seed",
		}
	}
	return nil
}

// startSession connects to the host and starts the engine. initial is the
// conversation selected once the first pulls are issued; empty means none.
func startSession(ctx context.Context, cfg *config.Config, initial string) (*session, error) {
	bus := events.NewBus()
	client := newHostClient(cfg, bus)
	if err := connect(ctx, client, cfg.Host.Addr); err != nil {
		client.Close()
		bus.Close()
		return nil, err
	}

	lp := loop.New(loop.DefaultConfig())
	if err := lp.Start(ctx); err != nil {
		client.Close()
		bus.Close()
		return nil, fmt.Errorf("start loop: %w", err)
	}

	engineCfg := engine.FromSettings(cfg.Sync)
	engineCfg.InitialSelection = initial
	eng := engine.New(client, lp, bus, engineCfg)
	if err := eng.Start(); err != nil {
		_ = lp.Stop()
		client.Close()
		bus.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	return &session{client: client, bus: bus, loop: lp, engine: eng}, nil
}

func (s *session) Close() {
	s.engine.Close()
	_ = s.loop.Stop()
	_ = s.client.Close()
	s.bus.Close()
}

// initialConversation picks the conversation to open with: an explicit
// argument, then the stored CLI context for this host, then the last one
// the TUI showed.
func initialConversation(cfg *config.Config, explicit, remembered string) string {
	if explicit != "" {
		return explicit
	}
	store := config.NewContextStore(contextPath(cfg))
	if ctx, err := store.Load(); err == nil {
		if id, ok := ctx.ConversationFor(cfg.Host.Addr); ok {
			return id
		}
	}
	return remembered
}
