package engine

import (
	"time"

	"github.com/tOgg1/chatsync/internal/config"
	"github.com/tOgg1/chatsync/internal/host"
	"github.com/tOgg1/chatsync/internal/notify"
)

// Config holds the engine's timing and presentation settings. It is fixed
// at construction.
type Config struct {
	// StatusInterval is how often connection status is pulled.
	StatusInterval time.Duration

	// ReconcileInterval is how often chats, interventions, follow-ups and
	// eligibility checks are pulled.
	ReconcileInterval time.Duration

	// TickInterval drives countdowns and local expiry.
	TickInterval time.Duration

	// HighlightDecay is how long an arrived message stays highlighted.
	HighlightDecay time.Duration

	// ExpiryGrace is how long past its instant a check or follow-up
	// survives locally before it is dropped.
	ExpiryGrace time.Duration

	// ToastDuration is the notification visibility window.
	ToastDuration time.Duration

	// MessageLimit is how many messages a history pull requests.
	MessageLimit int

	// Location is used for day separators and time labels. Nil means local.
	Location *time.Location

	// InitialSelection is selected on Start when set.
	InitialSelection string

	// LogEvery and LogBurst throttle background failure logs.
	LogEvery time.Duration
	LogBurst int
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		StatusInterval:    10 * time.Second,
		ReconcileInterval: 30 * time.Second,
		TickInterval:      time.Second,
		HighlightDecay:    2 * time.Second,
		ExpiryGrace:       time.Second,
		ToastDuration:     notify.DefaultWindow,
		MessageLimit:      host.DefaultMessageLimit,
		LogEvery:          10 * time.Second,
		LogBurst:          3,
	}
}

// FromSettings builds a Config from the sync section of the app config.
func FromSettings(s config.SyncConfig) Config {
	cfg := DefaultConfig()
	cfg.StatusInterval = s.StatusInterval
	cfg.ReconcileInterval = s.ReconcileInterval
	cfg.TickInterval = s.TickInterval
	cfg.HighlightDecay = s.HighlightDecay
	cfg.ExpiryGrace = s.ExpiryGrace
	cfg.ToastDuration = s.ToastDuration
	cfg.MessageLimit = s.MessageLimit
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StatusInterval <= 0 {
		c.StatusInterval = def.StatusInterval
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = def.ReconcileInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.HighlightDecay <= 0 {
		c.HighlightDecay = def.HighlightDecay
	}
	if c.ExpiryGrace < 0 {
		c.ExpiryGrace = def.ExpiryGrace
	}
	if c.ToastDuration <= 0 {
		c.ToastDuration = def.ToastDuration
	}
	if c.MessageLimit <= 0 {
		c.MessageLimit = def.MessageLimit
	}
	if c.LogEvery <= 0 {
		c.LogEvery = def.LogEvery
	}
	if c.LogBurst <= 0 {
		c.LogBurst = def.LogBurst
	}
	return c
}
