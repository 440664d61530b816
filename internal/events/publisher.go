// Package events provides push event publishing and subscription for chatsync.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Name identifies a push event emitted by the host.
type Name string

const (
	NewMessage          Name = "new-message"
	StatusUpdate        Name = "status-update"
	FollowUpCheckResult Name = "follow-up-check-result"
)

// Event is a push event as delivered by the host.
type Event struct {
	Name           Name
	ConversationID string
	Payload        json.RawMessage
	ReceivedAt     time.Time
}

// EventHandler is a callback function invoked when an event matches a subscription.
type EventHandler func(event Event)

// Filter defines criteria for matching events.
type Filter struct {
	// Names filters by event name (nil = all events).
	Names []Name

	// ConversationID filters to a specific conversation (empty = all).
	ConversationID string
}

// Matches returns true if the event matches the filter criteria.
func (f Filter) Matches(event Event) bool {
	if len(f.Names) > 0 {
		matched := false
		for _, n := range f.Names {
			if event.Name == n {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.ConversationID != "" && event.ConversationID != f.ConversationID {
		return false
	}

	return true
}

// subscription represents an active event subscription.
type subscription struct {
	id      string
	gen     uint64
	filter  Filter
	handler EventHandler
}

// Subscription is the handle returned by Subscribe. Closing a handle that
// has since been replaced under the same id is a no-op.
type Subscription struct {
	id  string
	gen uint64
	bus *Bus
}

// ID returns the subscription id.
func (s *Subscription) ID() string {
	return s.id
}

// Close deregisters the subscription if it is still the current instance.
func (s *Subscription) Close() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if cur, ok := s.bus.subscriptions[s.id]; ok && cur.gen == s.gen {
		delete(s.bus.subscriptions, s.id)
	}
}

// Publisher defines the interface for event publishing and subscription.
type Publisher interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)

	// Subscribe registers a handler under id. An existing registration with
	// the same id is deregistered first.
	Subscribe(id string, filter Filter, handler EventHandler) (*Subscription, error)

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(id string) error

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}

// Bus implements Publisher using in-process pub/sub.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	gen           uint64
	replaced      uint64
}

// NewBus creates a new in-memory event bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string]*subscription),
	}
}

// Publish sends an event to all matching subscribers.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if ctx != nil && ctx.Err() != nil {
		return
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	// Get matching subscriptions under read lock
	b.mu.RLock()
	var handlers []EventHandler
	for _, sub := range b.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	// Invoke handlers outside the lock to avoid deadlocks
	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
// Re-registering an id replaces the previous instance, so a listener is
// never delivered the same event twice.
func (b *Bus) Subscribe(id string, filter Filter, handler EventHandler) (*Subscription, error) {
	if id == "" {
		return nil, ErrInvalidSubscriptionID
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; exists {
		delete(b.subscriptions, id)
		b.replaced++
	}

	b.gen++
	b.subscriptions[id] = &subscription{
		id:      id,
		gen:     b.gen,
		filter:  filter,
		handler: handler,
	}

	return &Subscription{id: id, gen: b.gen, bus: b}, nil
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}

	delete(b.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Replaced returns how many registrations were replaced by re-registration.
func (b *Bus) Replaced() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.replaced
}

// Close removes all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string]*subscription)
}

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
