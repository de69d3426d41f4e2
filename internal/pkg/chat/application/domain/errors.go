package chat

import "errors"

// Domain-level errors for messaging behaviors
var (
	ErrInvalidConversation = errors.New("chat: conversation and sender are required")
	ErrNotParticipant      = errors.New("chat: sender is not a participant in the conversation")
	ErrEmptyMessage        = errors.New("chat: message content is empty")
	ErrSelfConversation    = errors.New("chat: cannot open a conversation with yourself")
)
