package usecase

import (
	"context"
	"fmt"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	repository "github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/port"
)

// GetMessagesInput carries parameters to fetch a conversation's history.
// ReaderID is the requesting user; messages from the other side are flagged
// read as part of the fetch when MarkRead is set.
type GetMessagesInput struct {
	ConversationID string
	ReaderID       string
	Limit          int
	Offset         int
	MarkRead       bool
}

// GetMessagesUseCase fetches chronological history for a conversation the
// reader belongs to.
type GetMessagesUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessagesUseCase(repo repository.ChatRepository) *GetMessagesUseCase {
	return &GetMessagesUseCase{Repo: repo}
}

func (uc *GetMessagesUseCase) Execute(ctx context.Context, in GetMessagesInput) ([]chat.Message, error) {
	if in.ConversationID == "" || in.ReaderID == "" {
		return nil, fmt.Errorf("conversation_id and reader_id are required")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.ReaderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, chat.ErrNotParticipant
	}

	if in.MarkRead {
		if err := uc.Repo.MarkConversationRead(ctx, in.ConversationID, in.ReaderID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	msgs, err := uc.Repo.ListMessages(ctx, in.ConversationID, in.Limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}
