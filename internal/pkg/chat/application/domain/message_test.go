package chat

import (
	"errors"
	"testing"
	"time"
)

func TestNewMessageNormalizes(t *testing.T) {
	m, err := NewMessage(Message{
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "  hello  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Content != "hello" {
		t.Errorf("expected trimmed content, got %q", m.Content)
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be defaulted")
	}
}

func TestNewMessageKeepsExplicitTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMessage(Message{ConversationID: "c1", SenderID: "u1", Content: "hi", CreatedAt: ts})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.CreatedAt.Equal(ts) {
		t.Errorf("expected CreatedAt %v, got %v", ts, m.CreatedAt)
	}
}

func TestNewMessageRejections(t *testing.T) {
	tests := []struct {
		name string
		in   Message
		want error
	}{
		{"missing conversation", Message{SenderID: "u1", Content: "hi"}, ErrInvalidConversation},
		{"missing sender", Message{ConversationID: "c1", Content: "hi"}, ErrInvalidConversation},
		{"empty content", Message{ConversationID: "c1", SenderID: "u1"}, ErrEmptyMessage},
		{"whitespace content", Message{ConversationID: "c1", SenderID: "u1", Content: "   "}, ErrEmptyMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMessage(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConversationParticipants(t *testing.T) {
	conv := Conversation{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}
	if !conv.HasParticipant("u1") || !conv.HasParticipant("u2") {
		t.Error("expected both participants to be members")
	}
	if conv.HasParticipant("u3") {
		t.Error("u3 must not be a member")
	}
	if got := conv.OtherParticipant("u1"); got != "u2" {
		t.Errorf("expected other participant u2, got %q", got)
	}
	if got := conv.OtherParticipant("u3"); got != "u1" {
		t.Errorf("non-member lookup returns first participant, got %q", got)
	}
}
