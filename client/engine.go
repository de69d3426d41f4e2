// Package client implements the synchronization engine a chat frontend works
// against: optimistic sends with correlation tokens, idempotent
// reconciliation of server confirmations, and activity-ordered conversation
// state. It holds no UI concerns; callers render snapshots and feed inbound
// events through the handlers.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tracks where a message sits in the optimistic send lifecycle.
type Status string

const (
	// StatusPending means the message exists only locally; the send is in
	// flight and the entry shows a provisional identifier and timestamp.
	StatusPending Status = "pending"
	// StatusSent means the server confirmed persistence and the entry
	// carries the authoritative identifier and timestamp.
	StatusSent Status = "sent"
	// StatusFailed means the send was rejected or timed out; the entry
	// stays visible until retried or discarded.
	StatusFailed Status = "failed"
)

// Message is one entry in a conversation's timeline. LocalID never changes
// for the life of the entry; ID is empty until the server confirms.
type Message struct {
	LocalID          string
	ID               string
	ConversationID   string
	SenderID         string
	Content          string
	CreatedAt        time.Time
	Read             bool
	Status           Status
	CorrelationToken string
	FailureReason    string
}

// Conversation is the engine's view of one DM thread.
type Conversation struct {
	ID        string
	PeerID    string
	UpdatedAt time.Time
	LastSeen  string // last message content, for list rendering
}

// Transport pushes outbound frames to the server. Implementations must be
// safe for concurrent use.
type Transport interface {
	SendMessage(ctx context.Context, conversationID, content, correlationToken string) error
	SendTyping(ctx context.Context, conversationID string, isTyping bool) error
}

// HistoryLoader is the engine's view of the HTTP collaborator surface:
// persisted timelines (oldest first) and read receipts.
type HistoryLoader interface {
	Messages(ctx context.Context, conversationID string) ([]Message, error)
	MarkRead(ctx context.Context, conversationID string) error
}

// Engine is the client-side synchronization core. All state behind one
// mutex; handler methods are called from the transport's read goroutine
// while Send/Retry come from the UI goroutine.
type Engine struct {
	mu        sync.Mutex
	selfID    string
	transport Transport
	history   HistoryLoader

	convs     map[string]*Conversation
	convOrder []string // insertion order, the stable base for sorting
	timelines map[string][]Message
	active    string // conversation currently open in the UI, "" when none
	byToken   map[string]string // correlation token -> local id
	typing    map[string]bool   // conversation id -> peer typing
	online    map[string]bool   // user id -> presence

	newToken func() string
}

// Option tweaks Engine construction.
type Option func(*Engine)

// WithTokenSource overrides correlation token generation, mainly for tests.
func WithTokenSource(fn func() string) Option {
	return func(e *Engine) { e.newToken = fn }
}

func NewEngine(selfID string, transport Transport, history HistoryLoader, opts ...Option) *Engine {
	e := &Engine{
		selfID:    selfID,
		transport: transport,
		history:   history,
		convs:     make(map[string]*Conversation),
		timelines: make(map[string][]Message),
		byToken:   make(map[string]string),
		typing:    make(map[string]bool),
		online:    make(map[string]bool),
		newToken:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrackConversation registers a conversation so sends and inbound events have
// somewhere to land. Re-tracking an existing conversation only refreshes the
// activity timestamp when it moved forward.
func (e *Engine) TrackConversation(id, peerID string, updatedAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trackLocked(id, peerID, updatedAt)
}

func (e *Engine) trackLocked(id, peerID string, updatedAt time.Time) *Conversation {
	conv, ok := e.convs[id]
	if !ok {
		conv = &Conversation{ID: id, PeerID: peerID, UpdatedAt: updatedAt}
		e.convs[id] = conv
		e.convOrder = append(e.convOrder, id)
		return conv
	}
	if peerID != "" && conv.PeerID == "" {
		conv.PeerID = peerID
	}
	if updatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = updatedAt
	}
	return conv
}

// Send performs an optimistic send: the message appears immediately as
// pending with a provisional identifier, and a correlation token ties the
// eventual confirmation or failure back to this exact attempt.
func (e *Engine) Send(ctx context.Context, conversationID, content string) (Message, error) {
	if conversationID == "" {
		return Message{}, errors.New("client: conversation id is required")
	}
	if content == "" {
		return Message{}, errors.New("client: content is required")
	}

	token := e.newToken()
	msg := Message{
		LocalID:          "local-" + token,
		ConversationID:   conversationID,
		SenderID:         e.selfID,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
		Status:           StatusPending,
		CorrelationToken: token,
	}

	e.mu.Lock()
	e.trackLocked(conversationID, "", msg.CreatedAt)
	e.timelines[conversationID] = append(e.timelines[conversationID], msg)
	e.byToken[token] = msg.LocalID
	e.mu.Unlock()

	if err := e.transport.SendMessage(ctx, conversationID, content, token); err != nil {
		e.OnSendError(conversationID, token, err.Error())
		return msg, fmt.Errorf("client: send failed: %w", err)
	}
	return msg, nil
}

// Retry re-submits a failed message under a fresh correlation token. The
// entry keeps its place in the timeline and flips back to pending. An
// unknown local identifier, or a message that did not fail, is silently
// ignored: the confirmation may have raced the retry tap.
func (e *Engine) Retry(ctx context.Context, conversationID, localID string) error {
	e.mu.Lock()
	idx := e.indexOfLocked(conversationID, localID)
	if idx < 0 {
		e.mu.Unlock()
		return nil
	}
	timeline := e.timelines[conversationID]
	if timeline[idx].Status != StatusFailed {
		e.mu.Unlock()
		return nil
	}

	delete(e.byToken, timeline[idx].CorrelationToken)
	token := e.newToken()
	timeline[idx].CorrelationToken = token
	timeline[idx].Status = StatusPending
	timeline[idx].FailureReason = ""
	e.byToken[token] = localID
	content := timeline[idx].Content
	e.mu.Unlock()

	if err := e.transport.SendMessage(ctx, conversationID, content, token); err != nil {
		e.OnSendError(conversationID, token, err.Error())
		return fmt.Errorf("client: retry failed: %w", err)
	}
	return nil
}

// OnMessage feeds a confirmed message event from the server into the engine.
// The correlation token is non-empty only on the sender's own copies. A peer
// message landing in the currently open conversation is shown read and a
// read receipt goes back to the server.
func (e *Engine) OnMessage(m Message, correlationToken string) {
	e.mu.Lock()
	markRead := e.reconcileLocked(m, correlationToken)
	e.mu.Unlock()

	if markRead {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		// Best effort: a lost receipt resolves on the next history fetch.
		_ = e.history.MarkRead(ctx, m.ConversationID)
	}
}

// reconcileLocked applies one confirmed message to the timeline. It is
// idempotent: replayed events match by authoritative identifier first, then
// by correlation token, and only a genuinely new message is appended. The
// return reports whether a read receipt is due for the message.
func (e *Engine) reconcileLocked(m Message, correlationToken string) bool {
	conv := e.trackLocked(m.ConversationID, "", m.CreatedAt)
	if m.SenderID != e.selfID && conv.PeerID == "" {
		conv.PeerID = m.SenderID
	}
	conv.LastSeen = m.Content

	timeline := e.timelines[m.ConversationID]

	// Already reconciled: a replayed confirmation is a no-op.
	for i := range timeline {
		if timeline[i].ID == m.ID && m.ID != "" {
			if m.Read {
				timeline[i].Read = true
			}
			return false
		}
	}

	// Our own optimistic placeholder: replace in place, keeping the slot.
	if correlationToken != "" {
		if localID, ok := e.byToken[correlationToken]; ok {
			for i := range timeline {
				if timeline[i].LocalID == localID {
					timeline[i].ID = m.ID
					timeline[i].Content = m.Content
					timeline[i].CreatedAt = m.CreatedAt
					timeline[i].Read = m.Read
					timeline[i].Status = StatusSent
					timeline[i].FailureReason = ""
					delete(e.byToken, correlationToken)
					return false
				}
			}
		}
	}

	// Peer message, or our own send confirmed on another device. A peer
	// message for the open conversation is read the moment it lands.
	markRead := m.SenderID != e.selfID && m.ConversationID == e.active
	if markRead {
		m.Read = true
	}
	m.LocalID = "remote-" + m.ID
	m.Status = StatusSent
	e.timelines[m.ConversationID] = append(timeline, m)
	return markRead
}

// OnSendError marks the attempt identified by the correlation token as
// failed. Unknown tokens are ignored; the attempt may already have been
// reconciled or discarded.
func (e *Engine) OnSendError(conversationID, correlationToken, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	localID, ok := e.byToken[correlationToken]
	if !ok {
		return
	}
	timeline := e.timelines[conversationID]
	for i := range timeline {
		if timeline[i].LocalID == localID && timeline[i].Status == StatusPending {
			timeline[i].Status = StatusFailed
			timeline[i].FailureReason = reason
			return
		}
	}
}

// OnTyping records the peer's typing state for a conversation.
func (e *Engine) OnTyping(conversationID, userID string, isTyping bool) {
	if userID == e.selfID {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typing[conversationID] = isTyping
}

// OnPresence records a user's online transition.
func (e *Engine) OnPresence(userID, status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online[userID] = status == "online"
}

// SelectConversation opens a conversation: it loads the persisted timeline,
// merges it with local pending or failed entries (which stay at the tail
// until resolved), and marks the conversation active so subsequent inbound
// peer messages are read on arrival.
func (e *Engine) SelectConversation(ctx context.Context, conversationID string) ([]Message, error) {
	persisted, err := e.history.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("client: load history: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = conversationID

	var unresolved []Message
	for _, m := range e.timelines[conversationID] {
		if m.Status != StatusSent {
			unresolved = append(unresolved, m)
		}
	}

	merged := make([]Message, 0, len(persisted)+len(unresolved))
	for _, m := range persisted {
		if m.LocalID == "" {
			m.LocalID = "remote-" + m.ID
		}
		m.Status = StatusSent
		merged = append(merged, m)
		e.trackLocked(conversationID, "", m.CreatedAt)
	}
	merged = append(merged, unresolved...)
	e.timelines[conversationID] = merged

	out := make([]Message, len(merged))
	copy(out, merged)
	return out, nil
}

// Deselect closes the open conversation; inbound messages go back to
// arriving unread.
func (e *Engine) Deselect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = ""
}

// Messages returns a snapshot of the conversation timeline.
func (e *Engine) Messages(conversationID string) []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	timeline := e.timelines[conversationID]
	out := make([]Message, len(timeline))
	copy(out, timeline)
	return out
}

// PeerTyping reports whether the peer in the conversation is typing.
func (e *Engine) PeerTyping(conversationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typing[conversationID]
}

// IsOnline reports the last known presence of a user.
func (e *Engine) IsOnline(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online[userID]
}

func (e *Engine) indexOfLocked(conversationID, localID string) int {
	for i, m := range e.timelines[conversationID] {
		if m.LocalID == localID {
			return i
		}
	}
	return -1
}
