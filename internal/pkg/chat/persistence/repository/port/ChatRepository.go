package repository

import (
	"context"
	"errors"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
)

// ErrConversationNotFound signals a lookup miss for a conversation.
var ErrConversationNotFound = errors.New("repository: conversation not found")

// ChatRepository defines persistence operations for conversations and messages.
// The store assigns message identifiers and creation timestamps; its insertion
// order is the authoritative ordering across senders.
type ChatRepository interface {
	// CreateConversation persists a conversation and its two participants,
	// returning the store-assigned identifier.
	CreateConversation(ctx context.Context, c chat.Conversation, participantIDs []string) (string, error)

	// GetConversationByParticipants finds the DM for the unordered pair
	// (userAID, userBID), or ErrConversationNotFound.
	GetConversationByParticipants(ctx context.Context, userAID, userBID string) (*chat.Conversation, error)

	// GetConversation loads a conversation with its participant ids.
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)

	// ListConversationsByUser returns the user's conversations with summary
	// fields populated, ordered by updated_at descending.
	ListConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error)

	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListParticipantIDs(ctx context.Context, conversationID string) ([]string, error)

	// SaveMessage persists m and returns the stored row with authoritative
	// identifier and timestamp. A replayed dedupe key for the same
	// (conversation, sender) returns the originally persisted row.
	SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error)

	// ListMessages returns messages in chronological order.
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]chat.Message, error)

	// MarkConversationRead flags every unread message not sent by readerID.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) error

	// UpdateConversationSummary sets the denormalized last-message fields and
	// advances updated_at to m.CreatedAt.
	UpdateConversationSummary(ctx context.Context, m chat.Message) error
}
