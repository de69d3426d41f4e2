package chat

import "time"

// Summary is the denormalized last-message hint stored on a conversation.
// It is re-derivable from the message log and may lag behind it briefly.
type Summary struct {
	MessageID string    `db:"last_message_id"`
	Content   string    `db:"last_message_content"`
	SenderID  string    `db:"last_message_sender_id"`
	CreatedAt time.Time `db:"last_message_at"`
}

// Conversation is a direct-message thread between exactly two users.
// At most one conversation exists per unordered participant pair.
// UpdatedAt is monotonically non-decreasing and tracks the creation time of
// the most recently accepted message (or the conversation's own creation).
type Conversation struct {
	ID             string    `db:"id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	ParticipantIDs []string  `db:"-"`
	LastMessage    *Summary  `db:"-"`
}

// OtherParticipant returns the first participant different from userID.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// HasParticipant tells whether userID belongs to this conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
