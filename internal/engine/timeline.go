package engine

import (
	"time"

	"github.com/tOgg1/chatsync/internal/loop"
	"github.com/tOgg1/chatsync/internal/models"
	"github.com/tOgg1/chatsync/internal/timeline"
)

// timelineStore holds the selected conversation's messages in arrival
// order along with the highlight timers of recent arrivals.
type timelineStore struct {
	conversationID string
	messages       []models.Message
	known          map[string]struct{}
	loaded         bool
	highlights     map[string]loop.Handle
}

func newTimelineStore() *timelineStore {
	return &timelineStore{
		known:      make(map[string]struct{}),
		highlights: make(map[string]loop.Handle),
	}
}

// reset empties the store for conversationID and stops every highlight.
func (s *timelineStore) reset(conversationID string) {
	for id, h := range s.highlights {
		h.Stop()
		delete(s.highlights, id)
	}
	s.conversationID = conversationID
	s.messages = nil
	s.known = make(map[string]struct{})
	s.loaded = false
}

// replace installs the host's history and returns the ids that were not
// present before. The first load of a conversation reports nothing.
func (s *timelineStore) replace(msgs []models.Message) []string {
	var arrived []string
	next := make([]models.Message, 0, len(msgs))
	known := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ID != "" {
			if _, dup := known[m.ID]; dup {
				continue
			}
			known[m.ID] = struct{}{}
			if _, ok := s.known[m.ID]; !ok && s.loaded {
				arrived = append(arrived, m.ID)
			}
		}
		next = append(next, m)
	}
	s.messages = next
	s.known = known
	s.loaded = true
	return arrived
}

// append adds a pushed message unless its id is already present.
func (s *timelineStore) append(m models.Message) bool {
	if m.ID != "" {
		if _, ok := s.known[m.ID]; ok {
			return false
		}
		s.known[m.ID] = struct{}{}
	}
	s.messages = append(s.messages, m)
	return true
}

// highlight records h as the decay timer for id, replacing any earlier one.
func (s *timelineStore) highlight(id string, h loop.Handle) {
	if prev, ok := s.highlights[id]; ok {
		prev.Stop()
	}
	s.highlights[id] = h
}

func (s *timelineStore) unhighlight(id string) {
	if h, ok := s.highlights[id]; ok {
		h.Stop()
		delete(s.highlights, id)
	}
}

func (s *timelineStore) highlighted(id string) bool {
	_, ok := s.highlights[id]
	return ok
}

func (s *timelineStore) entries(now time.Time, loc *time.Location) []timeline.Entry {
	items := timeline.MessageEntries(s.messages)
	for i := range items {
		items[i].Highlighted = s.highlighted(items[i].Message.ID)
	}
	return timeline.InsertSeparators(items, now, loc)
}
