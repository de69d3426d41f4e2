package usecase

import (
	"context"
	"fmt"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	repository "github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to accept a new message.
// CorrelationToken is the client-generated token for this send attempt; it is
// persisted as the message dedupe key, so replaying the same attempt returns
// the originally stored message.
type SendMessageInput struct {
	ConversationID   string
	SenderID         string
	Content          string
	CorrelationToken string
}

// SendMessageUseCase is the persist-then-summarize half of the broker
// pipeline: membership check, durable insert, conversation summary update.
// Fan-out to live connections is the caller's concern.
type SendMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewSendMessageUseCase(repo repository.ChatRepository) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo}
}

// Execute validates and persists a message, returning the stored row with its
// authoritative identifier and timestamp.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	if in.ConversationID == "" || in.SenderID == "" {
		return nil, chat.ErrInvalidConversation
	}
	if in.CorrelationToken == "" {
		return nil, fmt.Errorf("correlation token is required")
	}

	isParticipant, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !isParticipant {
		return nil, chat.ErrNotParticipant
	}

	msg, err := chat.NewMessage(chat.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		DedupeKey:      in.CorrelationToken,
	})
	if err != nil {
		return nil, err
	}

	stored, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := uc.Repo.UpdateConversationSummary(ctx, *stored); err != nil {
		// The message is durable; a failed summary update leaves a stale
		// denormalized hint, which is re-derivable. Still reported so the
		// sender can retry.
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return stored, nil
}
