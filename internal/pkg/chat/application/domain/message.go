package chat

import (
	"strings"
	"time"
)

// Message is an immutable log entry in a conversation. The ID and CreatedAt
// are authoritative only once assigned by the store; ordering across senders
// is determined by persistence order, never by client clocks.
type Message struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	SenderID       string    `db:"sender_id"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
	Read           bool      `db:"read"`

	// DedupeKey carries the client correlation token through persistence.
	// A unique (conversation_id, sender_id, dedupe_key) index makes retries
	// of an already-persisted send converge on the original row.
	DedupeKey string `db:"dedupe_key"`
}

// NewMessage validates and normalizes an inbound message before persistence.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, ErrInvalidConversation
	}

	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return nil, ErrEmptyMessage
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return &m, nil
}
