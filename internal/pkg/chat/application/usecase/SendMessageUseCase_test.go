package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	repository "github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/port"
)

// stubRepo implements ChatRepository with canned behavior per test.
type stubRepo struct {
	members map[string][]string
	rows    map[string]chat.Message // dedupe key -> row
	summary *chat.Message
	seq     int

	isParticipantErr error
	saveErr          error
	summaryErr       error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		members: map[string][]string{"c1": {"u1", "u2"}},
		rows:    make(map[string]chat.Message),
	}
}

func (s *stubRepo) CreateConversation(ctx context.Context, c chat.Conversation, ids []string) (string, error) {
	s.seq++
	return "conv-new", nil
}

func (s *stubRepo) GetConversationByParticipants(ctx context.Context, a, b string) (*chat.Conversation, error) {
	for id, members := range s.members {
		if len(members) == 2 &&
			((members[0] == a && members[1] == b) || (members[0] == b && members[1] == a)) {
			return &chat.Conversation{ID: id, ParticipantIDs: members}, nil
		}
	}
	return nil, repository.ErrConversationNotFound
}

func (s *stubRepo) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	members, ok := s.members[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return &chat.Conversation{ID: id, ParticipantIDs: members}, nil
}

func (s *stubRepo) ListConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	return nil, nil
}

func (s *stubRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if s.isParticipantErr != nil {
		return false, s.isParticipantErr
	}
	for _, id := range s.members[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) ListParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	return s.members[conversationID], nil
}

func (s *stubRepo) SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if row, ok := s.rows[m.DedupeKey]; ok {
		return &row, nil
	}
	s.seq++
	m.ID = "msg-" + m.DedupeKey
	m.CreatedAt = time.Date(2025, 6, 1, 9, 0, s.seq, 0, time.UTC)
	s.rows[m.DedupeKey] = m
	return &m, nil
}

func (s *stubRepo) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]chat.Message, error) {
	return nil, nil
}

func (s *stubRepo) MarkConversationRead(ctx context.Context, conversationID, readerID string) error {
	return nil
}

func (s *stubRepo) UpdateConversationSummary(ctx context.Context, m chat.Message) error {
	if s.summaryErr != nil {
		return s.summaryErr
	}
	s.summary = &m
	return nil
}

func TestSendMessagePersistsAndSummarizes(t *testing.T) {
	repo := newStubRepo()
	uc := NewSendMessageUseCase(repo)

	msg, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID:   "c1",
		SenderID:         "u1",
		Content:          " hello ",
		CorrelationToken: "t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected store-assigned id")
	}
	if msg.Content != "hello" {
		t.Errorf("content should be trimmed, got %q", msg.Content)
	}
	if repo.summary == nil || repo.summary.ID != msg.ID {
		t.Error("summary must track the persisted message")
	}
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	repo := newStubRepo()
	uc := NewSendMessageUseCase(repo)

	_, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID:   "c1",
		SenderID:         "stranger",
		Content:          "hi",
		CorrelationToken: "t1",
	})
	if !errors.Is(err, chat.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Error("nothing may be persisted for a rejected sender")
	}
}

func TestSendMessageWrapsPersistenceFailures(t *testing.T) {
	repo := newStubRepo()
	repo.saveErr = errors.New("connection refused")
	uc := NewSendMessageUseCase(repo)

	_, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID:   "c1",
		SenderID:         "u1",
		Content:          "hi",
		CorrelationToken: "t1",
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestSendMessageRequiresToken(t *testing.T) {
	uc := NewSendMessageUseCase(newStubRepo())
	_, err := uc.Execute(context.Background(), SendMessageInput{
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "hi",
	})
	if err == nil {
		t.Fatal("expected error for missing correlation token")
	}
}

func TestSendMessageDedupesReplayedToken(t *testing.T) {
	repo := newStubRepo()
	uc := NewSendMessageUseCase(repo)
	in := SendMessageInput{ConversationID: "c1", SenderID: "u1", Content: "hi", CorrelationToken: "t9"}

	first, err := uc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := uc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("replayed send: %v", err)
	}
	if first.ID != second.ID || !first.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("replay must return the original row: %+v vs %+v", first, second)
	}
	if len(repo.rows) != 1 {
		t.Errorf("expected a single persisted row, got %d", len(repo.rows))
	}
}
