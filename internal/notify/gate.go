// Package notify deduplicates user-visible notifications.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/tOgg1/chatsync/internal/models"
)

// DefaultWindow is how long a notification stays visible.
const DefaultWindow = 4 * time.Second

type visibleEntry struct {
	note    models.Notification
	shownAt time.Time
	seq     uint64
}

// Gate allows at most one visible notification per identity. Entries are
// only appended and expired.
type Gate struct {
	mu      sync.Mutex
	window  time.Duration
	visible map[string]visibleEntry
	seq     uint64
}

// NewGate creates a gate whose notifications dismiss after window.
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{
		window:  window,
		visible: make(map[string]visibleEntry),
	}
}

// Suppressed reports whether the identity may never be shown.
func Suppressed(id models.NotificationIdentity) bool {
	return id.Category == models.CategoryAutomaticCheck
}

// ShouldShow reports whether a notification with this identity may be shown
// now and, if so, records it as visible.
func (g *Gate) ShouldShow(id models.NotificationIdentity, now time.Time) bool {
	return g.Show(models.Notification{Identity: id}, now)
}

// Show records n as visible unless an entry with the same identity is still
// visible or the identity is suppressed.
func (g *Gate) Show(n models.Notification, now time.Time) bool {
	if Suppressed(n.Identity) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(now)
	key := n.Identity.Key()
	if _, ok := g.visible[key]; ok {
		return false
	}
	g.seq++
	g.visible[key] = visibleEntry{note: n, shownAt: now, seq: g.seq}
	return true
}

// Sweep dismisses expired notifications and returns how many were removed.
func (g *Gate) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked(now)
}

// Visible returns the notifications still on screen, oldest first.
func (g *Gate) Visible(now time.Time) []models.Notification {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(now)
	entries := make([]visibleEntry, 0, len(g.visible))
	for _, e := range g.visible {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]models.Notification, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.note)
	}
	return out
}

func (g *Gate) sweepLocked(now time.Time) int {
	removed := 0
	for key, e := range g.visible {
		if !now.Before(e.shownAt.Add(g.window)) {
			delete(g.visible, key)
			removed++
		}
	}
	return removed
}
