package engine

type pullKind string

const (
	pullChats         pullKind = "chats"
	pullMessages      pullKind = "messages"
	pullStatus        pullKind = "status"
	pullInterventions pullKind = "interventions"
	pullIntervention  pullKind = "intervention"
	pullAIStatus      pullKind = "ai-status"
	pullFollowUps     pullKind = "follow-ups"
	pullCheckInfo     pullKind = "check-info"
)

type pullKey struct {
	kind           pullKind
	conversationID string
}

// token identifies one issued pull.
type token struct {
	key pullKey
	seq uint64
}

// guard hands out a sequence token per (kind, conversation). Only the most
// recently issued token for a key is current; responses carrying any other
// token are stale.
type guard struct {
	seq     uint64
	current map[pullKey]uint64
	pending map[pullKey]struct{}
}

func newGuard() *guard {
	return &guard{
		current: make(map[pullKey]uint64),
		pending: make(map[pullKey]struct{}),
	}
}

func (g *guard) issue(kind pullKind, conversationID string) token {
	g.seq++
	key := pullKey{kind: kind, conversationID: conversationID}
	g.current[key] = g.seq
	g.pending[key] = struct{}{}
	return token{key: key, seq: g.seq}
}

// invalidate makes every outstanding token for the key stale.
func (g *guard) invalidate(kind pullKind, conversationID string) {
	g.seq++
	key := pullKey{kind: kind, conversationID: conversationID}
	g.current[key] = g.seq
	delete(g.pending, key)
}

// resolve reports whether t is still current and, if so, marks its key as
// no longer loading.
func (g *guard) resolve(t token) bool {
	if g.current[t.key] != t.seq {
		return false
	}
	delete(g.pending, t.key)
	return true
}

func (g *guard) loading(kind pullKind, conversationID string) bool {
	_, ok := g.pending[pullKey{kind: kind, conversationID: conversationID}]
	return ok
}
