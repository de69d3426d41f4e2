package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/apaluca/CipherTalk/internal/auth"
	"github.com/apaluca/CipherTalk/internal/infrastructure/realtime"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/broker"
)

// ChatSocketController owns the websocket endpoint for realtime chat traffic.
// Each accepted connection gets a read loop plus one worker goroutine that
// drains send requests sequentially, so a slow persist never delays typing
// frames read off the same socket.
type ChatSocketController struct {
	registry *realtime.Registry
	broker   *broker.Broker
	relay    *broker.Relay
	presence *broker.Presence
	log      zerolog.Logger
}

func NewChatSocketController(registry *realtime.Registry, b *broker.Broker, relay *broker.Relay, presence *broker.Presence, log zerolog.Logger) *ChatSocketController {
	return &ChatSocketController{
		registry: registry,
		broker:   b,
		relay:    relay,
		presence: presence,
		log:      log.With().Str("component", "socket").Logger(),
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Token auth runs before the upgrade; origin stays open.
		return true
	},
}

const (
	defaultReadTimeout = 60 * time.Second

	// sendQueueDepth bounds in-flight sends per connection. The read loop
	// blocks once it fills, which is plain backpressure on the client.
	sendQueueDepth = 32
)

// Handle upgrades the request and processes frames until the client
// disconnects. The route sits behind the auth middleware; the identity comes
// from the validated token, never from the client's frames.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; nothing more to say.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		conn.Start()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		ctl.registry.Register(conn)
		ctl.presence.Online(ctx, userID)
		defer func() {
			last := ctl.registry.Unregister(conn)
			if last {
				// Detached contexts for teardown; the request context is
				// already done when the socket drops.
				ctl.presence.Offline(context.Background(), userID)
			}
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			ctl.presence.Refresh(ctx, userID)
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		_ = conn.Send(broker.NewConnectedPayload())

		sends := make(chan broker.SendRequest, sendQueueDepth)
		go ctl.sendWorker(ctx, conn, sends)

		ctl.readLoop(ctx, conn, ws, sends)
	}
}

// sendWorker drains send requests for one connection in arrival order. Each
// request runs the full persist-then-broadcast pipeline before the next one
// starts, which keeps a sender's own messages ordered.
func (ctl *ChatSocketController) sendWorker(ctx context.Context, conn realtime.Conn, sends <-chan broker.SendRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-sends:
			ctl.broker.HandleSend(ctx, conn, req)
		}
	}
}

func (ctl *ChatSocketController) readLoop(ctx context.Context, conn realtime.Conn, ws *websocket.Conn, sends chan<- broker.SendRequest) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return
			}
			ctl.log.Debug().Err(err).Str("user_id", conn.UserID()).Msg("socket read failed")
			return
		}

		req, err := broker.DecodeRequest(data)
		if err != nil {
			ctl.replyError(conn, err)
			continue
		}

		switch r := req.(type) {
		case broker.SendRequest:
			select {
			case sends <- r:
			case <-ctx.Done():
				return
			}
		case broker.TypingRequest:
			// Typing is relayed inline; it must not queue behind sends.
			ctl.relay.HandleTyping(ctx, conn.UserID(), r)
		}
	}
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (ctl *ChatSocketController) replyError(conn realtime.Conn, err error) {
	detail := "invalid frame"
	if errors.Is(err, broker.ErrUnknownFrame) {
		detail = "unknown frame type"
	}
	payload, err := json.Marshal(errorFrame{Type: "send_error", Error: detail})
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}
