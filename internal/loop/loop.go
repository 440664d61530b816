// Package loop provides the single event-loop goroutine that serializes all
// engine state mutations, plus timers and off-loop round trips that post
// their completions back to it.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/chatsync/internal/logging"
)

// Loop errors.
var (
	ErrLoopAlreadyRunning = errors.New("loop already running")
	ErrLoopNotRunning     = errors.New("loop not running")
)

// Handle cancels a scheduled callback. Stopping is the only cancellation
// primitive; once Stop returns on the loop the callback never runs again.
type Handle interface {
	Stop()
}

// Dispatcher is what the engine schedules work through.
type Dispatcher interface {
	// Post queues fn to run on the loop. It reports false once stopped.
	Post(fn func()) bool

	// Go runs work off the loop and posts the completion it returns.
	Go(work func(ctx context.Context) func())

	// AfterFunc posts fn to the loop after d.
	AfterFunc(d time.Duration, fn func()) Handle

	// Every posts fn to the loop every d.
	Every(d time.Duration, fn func()) Handle

	// Now returns the loop's clock.
	Now() time.Time
}

// Config contains configuration for the loop.
type Config struct {
	// QueueSize is the capacity of the posted-callback queue.
	// Default: 256
	QueueSize int

	// MaxInFlight limits concurrent off-loop round trips.
	// Default: 8
	MaxInFlight int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:   256,
		MaxInFlight: 8,
	}
}

// Loop runs posted callbacks one at a time on a single goroutine.
type Loop struct {
	config Config
	logger zerolog.Logger
	queue  chan func()
	sem    chan struct{}

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers sync.WaitGroup
}

// New creates a loop. Call Start before posting.
func New(config Config) *Loop {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = DefaultConfig().MaxInFlight
	}

	return &Loop{
		config: config,
		logger: logging.Component("loop"),
		queue:  make(chan func(), config.QueueSize),
		sem:    make(chan struct{}, config.MaxInFlight),
	}
}

// Start begins running posted callbacks.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrLoopAlreadyRunning
	}

	l.ctx, l.cancel = context.WithCancel(ctx)
	l.running = true

	l.logger.Debug().
		Int("queue_size", l.config.QueueSize).
		Int("max_in_flight", l.config.MaxInFlight).
		Msg("event loop starting")

	l.wg.Add(1)
	go l.run()

	return nil
}

// Stop halts the loop after in-flight round trips return. Callbacks still
// queued are dropped.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrLoopNotRunning
	}
	l.cancel()
	l.running = false
	l.mu.Unlock()

	l.workers.Wait()
	l.wg.Wait()
	l.logger.Debug().Msg("event loop stopped")
	return nil
}

// IsRunning returns true if the loop is running.
func (l *Loop) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("event loop callback panicked")
		}
	}()
	fn()
}

// Post queues fn to run on the loop.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.RLock()
	running, ctx := l.running, l.ctx
	l.mu.RUnlock()
	if !running {
		return false
	}

	select {
	case l.queue <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// Go runs work on its own goroutine, bounded by MaxInFlight, and posts the
// returned completion to the loop. A nil completion posts nothing.
func (l *Loop) Go(work func(ctx context.Context) func()) {
	l.mu.RLock()
	running, ctx := l.running, l.ctx
	if running {
		l.workers.Add(1)
	}
	l.mu.RUnlock()
	if !running {
		return
	}

	go func() {
		defer l.workers.Done()

		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		done := work(ctx)
		<-l.sem

		if done != nil && ctx.Err() == nil {
			l.Post(done)
		}
	}()
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// timer is a Handle whose callbacks are dropped once stopped.
type timer struct {
	stopped atomic.Bool
	stop    func()
}

func (t *timer) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	if t.stop != nil {
		t.stop()
	}
}

// AfterFunc posts fn to the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	t := &timer{}
	tm := time.AfterFunc(d, func() {
		l.Post(func() {
			if !t.stopped.Load() {
				t.stopped.Store(true)
				fn()
			}
		})
	})
	t.stop = func() { tm.Stop() }
	return t
}

// Every posts fn to the loop every d until stopped or the loop stops.
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	t := &timer{}
	done := make(chan struct{})
	t.stop = func() { close(done) }

	l.mu.RLock()
	ctx := l.ctx
	l.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				})
			}
		}
	}()
	return t
}
