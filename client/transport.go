package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wire frame shapes shared with the server protocol.
type outboundFrame struct {
	Type             string `json:"type"`
	ConversationID   string `json:"conversation_id,omitempty"`
	Content          string `json:"content,omitempty"`
	CorrelationToken string `json:"correlation_token,omitempty"`
	IsTyping         *bool  `json:"is_typing,omitempty"`
}

type inboundEvent struct {
	Type             string         `json:"type"`
	Message          *messageFields `json:"message,omitempty"`
	CorrelationToken string         `json:"correlation_token,omitempty"`
	Error            string         `json:"error,omitempty"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	IsTyping         bool           `json:"is_typing,omitempty"`
	Status           string         `json:"status,omitempty"`
}

type messageFields struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
}

// SocketTransport speaks the realtime protocol over a gorilla websocket.
// Writes are serialized by a mutex; reads run on a single goroutine started
// by Listen.
type SocketTransport struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// Dial connects to the server's websocket endpoint, passing the bearer token
// as a query parameter since upgrade requests cannot carry headers from a
// browser.
func Dial(ctx context.Context, baseURL, token string) (*SocketTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	return &SocketTransport{ws: ws}, nil
}

var _ Transport = (*SocketTransport)(nil)

func (t *SocketTransport) SendMessage(ctx context.Context, conversationID, content, correlationToken string) error {
	return t.writeFrame(ctx, outboundFrame{
		Type:             "send",
		ConversationID:   conversationID,
		Content:          content,
		CorrelationToken: correlationToken,
	})
}

func (t *SocketTransport) SendTyping(ctx context.Context, conversationID string, isTyping bool) error {
	return t.writeFrame(ctx, outboundFrame{
		Type:           "typing",
		ConversationID: conversationID,
		IsTyping:       &isTyping,
	})
}

func (t *SocketTransport) writeFrame(ctx context.Context, frame outboundFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("client: encode frame: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.ws.SetWriteDeadline(deadline)
	} else {
		_ = t.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return t.ws.WriteMessage(websocket.TextMessage, payload)
}

// Listen reads events until the connection drops or ctx is canceled, feeding
// each one into the engine. It returns the terminal read error; a normal
// close comes back as nil.
func (t *SocketTransport) Listen(ctx context.Context, e *Engine) error {
	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()

	for {
		_, data, err := t.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("client: read: %w", err)
		}

		var ev inboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue // tolerate frames from a newer protocol revision
		}
		dispatch(e, ev)
	}
}

func dispatch(e *Engine, ev inboundEvent) {
	switch ev.Type {
	case "message":
		if ev.Message == nil {
			return
		}
		e.OnMessage(Message{
			ID:             ev.Message.ID,
			ConversationID: ev.Message.ConversationID,
			SenderID:       ev.Message.SenderID,
			Content:        ev.Message.Content,
			CreatedAt:      ev.Message.CreatedAt,
			Read:           ev.Message.Read,
		}, ev.CorrelationToken)
	case "send_error":
		e.OnSendError(ev.ConversationID, ev.CorrelationToken, ev.Error)
	case "typing":
		e.OnTyping(ev.ConversationID, ev.UserID, ev.IsTyping)
	case "presence":
		e.OnPresence(ev.UserID, ev.Status)
	case "connected":
		// handshake ack, nothing to track
	}
}

func (t *SocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	return t.ws.Close()
}
