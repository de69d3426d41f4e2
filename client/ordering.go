package client

import (
	"sort"
	"time"
)

// Conversations returns a snapshot ordered by latest activity. The sort is
// stable over tracking order, so conversations sharing a timestamp keep a
// fixed relative position instead of jittering between renders.
func (e *Engine) Conversations() []Conversation {
	e.mu.Lock()
	out := make([]Conversation, 0, len(e.convOrder))
	for _, id := range e.convOrder {
		out = append(out, *e.convs[id])
	}
	e.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Touch advances a conversation's activity timestamp. Sends and inbound
// confirmations both run through here, so the list order reflects whichever
// side spoke last. A timestamp in the past never moves a conversation down.
func (e *Engine) Touch(conversationID string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trackLocked(conversationID, "", at)
}
