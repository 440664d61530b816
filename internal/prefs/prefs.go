// Package prefs persists per-user TUI preferences between sessions.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	CurrentVersion = 1

	defaultDebounce = 1 * time.Second
	draftMaxAge     = 30 * 24 * time.Hour
	maxDrafts       = 200
)

type Prefs struct {
	Version          int              `json:"version"`
	LastConversation string           `json:"last_conversation,omitempty"` // restored on startup
	Theme            string           `json:"theme,omitempty"`             // "default", "dark", "light"
	RelativeTime     bool             `json:"relative_time,omitempty"`     // show countdowns instead of clock times
	Drafts           map[string]Draft `json:"drafts,omitempty"`            // conversation ID -> unsent text
}

type Draft struct {
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Store debounces writes to a JSON file guarded by an advisory lock.
type Store struct {
	path     string
	lockPath string

	mu       sync.Mutex
	prefs    Prefs
	dirty    bool
	timer    *time.Timer
	debounce time.Duration
	now      func() time.Time
}

func New(path string) *Store {
	path = strings.TrimSpace(path)
	return &Store{
		path:     path,
		lockPath: path + ".lock",
		prefs:    Prefs{Version: CurrentVersion, Drafts: make(map[string]Draft)},
		debounce: defaultDebounce,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Path() string { return s.path }

// Load replaces the in-memory preferences with the file's. A missing or
// empty file yields defaults.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}

	loaded, err := s.loadLocked()
	if err != nil {
		return err
	}
	s.prefs = loaded
	s.dirty = false
	return nil
}

func (s *Store) Snapshot() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePrefs(s.prefs)
}

func (s *Store) LastConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.LastConversation
}

func (s *Store) SetLastConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	if id == s.prefs.LastConversation {
		return
	}
	s.prefs.LastConversation = id
	s.markDirtyLocked()
}

func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Theme
}

func (s *Store) SetTheme(theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	theme = strings.TrimSpace(theme)
	if theme == s.prefs.Theme {
		return
	}
	s.prefs.Theme = theme
	s.markDirtyLocked()
}

func (s *Store) RelativeTime() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.RelativeTime
}

func (s *Store) SetRelativeTime(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on == s.prefs.RelativeTime {
		return
	}
	s.prefs.RelativeTime = on
	s.markDirtyLocked()
}

func (s *Store) Draft(conversationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.prefs.Drafts[strings.TrimSpace(conversationID)]
	return d.Body, ok
}

// SetDraft stores unsent text for a conversation. Blank text deletes it.
func (s *Store) SetDraft(conversationID, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return
	}
	if s.prefs.Drafts == nil {
		s.prefs.Drafts = make(map[string]Draft)
	}
	if strings.TrimSpace(body) == "" {
		if _, ok := s.prefs.Drafts[conversationID]; !ok {
			return
		}
		delete(s.prefs.Drafts, conversationID)
		s.markDirtyLocked()
		return
	}
	s.prefs.Drafts[conversationID] = Draft{Body: body, UpdatedAt: s.now()}
	s.markDirtyLocked()
}

func (s *Store) SaveSoon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markDirtyLocked()
}

// Close flushes pending changes.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	needsSave := s.dirty
	s.mu.Unlock()
	if !needsSave {
		return nil
	}
	return s.SaveNow()
}

func (s *Store) SaveNow() error {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return nil
	}
	prefs := clonePrefs(s.prefs)
	s.dirty = false
	now := s.now()
	s.mu.Unlock()

	prefs.Version = CurrentVersion
	prefs = normalizePrefs(prefs, now)

	if err := withFileLock(s.lockPath, func() error {
		return writeAtomicJSON(s.path, prefs)
	}); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.path == "" {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, func() {
			_ = s.SaveNow()
		})
		return
	}
	_ = s.timer.Reset(s.debounce)
}

func (s *Store) loadLocked() (Prefs, error) {
	var out Prefs
	if err := withFileLock(s.lockPath, func() error {
		payload, err := os.ReadFile(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				out = Prefs{Version: CurrentVersion}
				return nil
			}
			return err
		}
		if len(payload) == 0 {
			out = Prefs{Version: CurrentVersion}
			return nil
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return fmt.Errorf("decode %s: %w", s.path, err)
		}
		return nil
	}); err != nil {
		return Prefs{}, err
	}

	if out.Version <= 0 {
		out.Version = CurrentVersion
	}
	if out.Drafts == nil {
		out.Drafts = make(map[string]Draft)
	}
	return out, nil
}

func withFileLock(lockPath string, fn func() error) error {
	if strings.TrimSpace(lockPath) == "" {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock %s: %w", lockPath, err)
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()
	return fn()
}

func writeAtomicJSON(path string, prefs Prefs) error {
	payload, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// normalizePrefs drops stale and blank drafts and keeps the newest
// maxDrafts.
func normalizePrefs(prefs Prefs, now time.Time) Prefs {
	if prefs.Drafts == nil {
		prefs.Drafts = make(map[string]Draft)
	}
	type keyed struct {
		id    string
		draft Draft
	}
	kept := make([]keyed, 0, len(prefs.Drafts))
	for id, d := range prefs.Drafts {
		if strings.TrimSpace(id) == "" || strings.TrimSpace(d.Body) == "" {
			continue
		}
		if !d.UpdatedAt.IsZero() && now.Sub(d.UpdatedAt) > draftMaxAge {
			continue
		}
		kept = append(kept, keyed{id: id, draft: d})
	}
	if len(kept) > maxDrafts {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].draft.UpdatedAt.After(kept[j].draft.UpdatedAt)
		})
		kept = kept[:maxDrafts]
	}
	drafts := make(map[string]Draft, len(kept))
	for _, k := range kept {
		drafts[k.id] = k.draft
	}
	prefs.Drafts = drafts
	return prefs
}

func clonePrefs(p Prefs) Prefs {
	out := p
	if p.Drafts != nil {
		out.Drafts = make(map[string]Draft, len(p.Drafts))
		for k, v := range p.Drafts {
			out.Drafts[k] = v
		}
	}
	return out
}
