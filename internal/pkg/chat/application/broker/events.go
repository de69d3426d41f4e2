package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
)

// Inbound frame types accepted over a live connection.
const (
	frameSend   = "send"
	frameTyping = "typing"
)

// Outbound event types.
const (
	eventMessage   = "message"
	eventSendError = "send_error"
	eventTyping    = "typing"
	eventPresence  = "presence"
	eventConnected = "connected"
)

// ErrUnknownFrame reports an inbound frame whose type is not part of the
// protocol.
var ErrUnknownFrame = errors.New("broker: unknown frame type")

// SendRequest asks the broker to persist and fan out one message. Each request
// carries a client-generated correlation token unique to the send attempt.
type SendRequest struct {
	ConversationID   string
	Content          string
	CorrelationToken string
}

func (r SendRequest) validate() error {
	if r.ConversationID == "" {
		return errors.New("broker: conversation_id is required")
	}
	if r.CorrelationToken == "" {
		return errors.New("broker: correlation_token is required")
	}
	return nil
}

// TypingRequest relays an ephemeral typing-state change.
type TypingRequest struct {
	ConversationID string
	IsTyping       bool
}

// Request is the tagged union of inbound frame variants.
type Request interface{ isRequest() }

func (SendRequest) isRequest()   {}
func (TypingRequest) isRequest() {}

// inboundFrame is the raw JSON envelope read off the wire.
type inboundFrame struct {
	Type             string `json:"type"`
	ConversationID   string `json:"conversation_id,omitempty"`
	Content          string `json:"content,omitempty"`
	CorrelationToken string `json:"correlation_token,omitempty"`
	IsTyping         *bool  `json:"is_typing,omitempty"`
}

// DecodeRequest parses one inbound frame into its typed request variant.
func DecodeRequest(data []byte) (Request, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("broker: malformed frame: %w", err)
	}
	switch frame.Type {
	case frameSend:
		return SendRequest{
			ConversationID:   frame.ConversationID,
			Content:          frame.Content,
			CorrelationToken: frame.CorrelationToken,
		}, nil
	case frameTyping:
		if frame.ConversationID == "" {
			return nil, errors.New("broker: conversation_id is required")
		}
		isTyping := false
		if frame.IsTyping != nil {
			isTyping = *frame.IsTyping
		}
		return TypingRequest{ConversationID: frame.ConversationID, IsTyping: isTyping}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, frame.Type)
	}
}

// MessagePayload is the persisted message as carried on the wire.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
}

// MessageEvent confirms a persisted message to every participant. The
// correlation token lets the sending client replace its optimistic
// placeholder; other participants insert by identifier.
type MessageEvent struct {
	Type             string         `json:"type"`
	Message          MessagePayload `json:"message"`
	CorrelationToken string         `json:"correlation_token,omitempty"`
	Status           string         `json:"status"`
}

// SendErrorEvent reports a failed send to the sending connection only.
type SendErrorEvent struct {
	Type             string `json:"type"`
	Error            string `json:"error"`
	CorrelationToken string `json:"correlation_token"`
	ConversationID   string `json:"conversation_id"`
}

// TypingEvent notifies the other participant of a typing-state change.
type TypingEvent struct {
	Type           string `json:"type"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// PresenceEvent announces a user coming online or going offline.
type PresenceEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// ConnectedEvent is the handshake acknowledgment after a successful attach.
type ConnectedEvent struct {
	Type string `json:"type"`
}

// NewConnectedPayload encodes the handshake ack.
func NewConnectedPayload() []byte {
	payload, _ := json.Marshal(ConnectedEvent{Type: eventConnected})
	return payload
}

func newMessageEvent(m chat.Message, correlationToken string) MessageEvent {
	return MessageEvent{
		Type: eventMessage,
		Message: MessagePayload{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
			Read:           m.Read,
		},
		CorrelationToken: correlationToken,
		Status:           "sent",
	}
}
