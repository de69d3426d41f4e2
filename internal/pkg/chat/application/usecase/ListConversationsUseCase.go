package usecase

import (
	"context"
	"fmt"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	repository "github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/port"
)

// ListConversationsInput wraps the user whose conversation list is requested.
type ListConversationsInput struct {
	UserID string
}

// ListConversationsUseCase returns the user's conversations, newest activity
// first, with the denormalized last-message summary attached.
type ListConversationsUseCase struct {
	Repo repository.ChatRepository
}

func NewListConversationsUseCase(repo repository.ChatRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]chat.Conversation, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	convs, err := uc.Repo.ListConversationsByUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return convs, nil
}
