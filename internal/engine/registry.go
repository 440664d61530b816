package engine

import (
	"github.com/tOgg1/chatsync/internal/models"
)

// registry is the conversation list, newest activity first.
type registry struct {
	convs  []models.Conversation
	loaded bool
}

func (r *registry) replace(convs []models.Conversation) {
	next := make([]models.Conversation, 0, len(convs))
	seen := make(map[string]struct{}, len(convs))
	for _, c := range convs {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		next = append(next, c)
	}
	models.SortConversations(next)
	r.convs = next
	r.loaded = true
}

func (r *registry) get(id string) (models.Conversation, bool) {
	for _, c := range r.convs {
		if c.ID == id {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// touch folds a pushed message into the list until the next chats pull
// replaces it.
func (r *registry) touch(id string, msg models.Message) {
	if id == "" {
		return
	}
	idx := -1
	for i := range r.convs {
		if r.convs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.convs = append(r.convs, models.Conversation{ID: id})
		idx = len(r.convs) - 1
	}
	c := &r.convs[idx]
	c.LastMessagePreview = msg.Content.Preview()
	c.LastFromSelf = msg.FromSelf
	if at := msg.At(); at.After(c.LastActivity) {
		c.LastActivity = at
	}
	models.SortConversations(r.convs)
}

func (r *registry) list() []models.Conversation {
	out := make([]models.Conversation, len(r.convs))
	copy(out, r.convs)
	return out
}
