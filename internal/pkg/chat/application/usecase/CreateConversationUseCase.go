package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	repository "github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/port"
)

// CreateConversationInput identifies the unordered user pair to connect.
type CreateConversationInput struct {
	CreatorID     string
	ParticipantID string
}

// CreateConversationResult reports whether a new conversation was created or
// the existing one for the pair was returned.
type CreateConversationResult struct {
	Conversation *chat.Conversation
	Created      bool
}

// CreateConversationUseCase opens the DM between two users. Creation is
// idempotent: re-requesting the same pair returns the existing conversation.
type CreateConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewCreateConversationUseCase(repo repository.ChatRepository) *CreateConversationUseCase {
	return &CreateConversationUseCase{Repo: repo}
}

func (uc *CreateConversationUseCase) Execute(ctx context.Context, in CreateConversationInput) (*CreateConversationResult, error) {
	if in.CreatorID == "" || in.ParticipantID == "" {
		return nil, fmt.Errorf("creator_id and participant_id are required")
	}
	if in.CreatorID == in.ParticipantID {
		return nil, chat.ErrSelfConversation
	}

	existing, err := uc.Repo.GetConversationByParticipants(ctx, in.CreatorID, in.ParticipantID)
	if err == nil {
		return &CreateConversationResult{Conversation: existing, Created: false}, nil
	}
	if !errors.Is(err, repository.ErrConversationNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	now := time.Now().UTC()
	conv := chat.Conversation{
		CreatedAt:      now,
		UpdatedAt:      now,
		ParticipantIDs: []string{in.CreatorID, in.ParticipantID},
	}
	id, err := uc.Repo.CreateConversation(ctx, conv, conv.ParticipantIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	conv.ID = id

	return &CreateConversationResult{Conversation: &conv, Created: true}, nil
}
