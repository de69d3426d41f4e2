package usecase

import (
	"context"
	"errors"
	"testing"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
)

func TestCreateConversationIsIdempotentPerPair(t *testing.T) {
	repo := newStubRepo()
	uc := NewCreateConversationUseCase(repo)

	// c1 already connects u1 and u2; requesting either direction returns it.
	res, err := uc.Execute(context.Background(), CreateConversationInput{CreatorID: "u1", ParticipantID: "u2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created || res.Conversation.ID != "c1" {
		t.Errorf("expected existing conversation c1, got %+v", res)
	}

	res, err = uc.Execute(context.Background(), CreateConversationInput{CreatorID: "u2", ParticipantID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created || res.Conversation.ID != "c1" {
		t.Errorf("pair lookup must be order-independent, got %+v", res)
	}
}

func TestCreateConversationCreatesNewPair(t *testing.T) {
	repo := newStubRepo()
	uc := NewCreateConversationUseCase(repo)

	res, err := uc.Execute(context.Background(), CreateConversationInput{CreatorID: "u1", ParticipantID: "u3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created {
		t.Error("expected a fresh conversation")
	}
	if res.Conversation.UpdatedAt.IsZero() {
		t.Error("new conversation must start with updated_at set to creation time")
	}
	want := []string{"u1", "u3"}
	got := res.Conversation.ParticipantIDs
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected participants %v, got %v", want, got)
	}
}

func TestCreateConversationRejectsSelf(t *testing.T) {
	uc := NewCreateConversationUseCase(newStubRepo())
	_, err := uc.Execute(context.Background(), CreateConversationInput{CreatorID: "u1", ParticipantID: "u1"})
	if !errors.Is(err, chat.ErrSelfConversation) {
		t.Fatalf("expected ErrSelfConversation, got %v", err)
	}
}
