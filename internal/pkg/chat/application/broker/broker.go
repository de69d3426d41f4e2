package broker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/apaluca/CipherTalk/internal/infrastructure/realtime"
	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/usecase"
)

// Router is the slice of the connection registry the broker fans out through.
type Router interface {
	Route(userID string, payload []byte) int
	BroadcastAll(payload []byte) int
}

// Broker accepts send requests from live connections, persists them through
// the send use case, and routes the confirmation to every participant's
// connections, the sender's own included. Failures travel back to the sending
// connection only; the broker never retries on its own.
type Broker struct {
	sendUC *usecase.SendMessageUseCase
	listUC *usecase.ListParticipantsUseCase
	router Router
	log    zerolog.Logger
}

func New(sendUC *usecase.SendMessageUseCase, listUC *usecase.ListParticipantsUseCase, router Router, log zerolog.Logger) *Broker {
	return &Broker{
		sendUC: sendUC,
		listUC: listUC,
		router: router,
		log:    log.With().Str("component", "broker").Logger(),
	}
}

// HandleSend runs the persist-then-broadcast pipeline for one send request
// from conn. The store's assignment of identifier and timestamp is the single
// point where cross-sender ordering is decided.
func (b *Broker) HandleSend(ctx context.Context, conn realtime.Conn, req SendRequest) {
	if err := req.validate(); err != nil {
		b.replyError(conn, req, err.Error())
		return
	}

	stored, err := b.sendUC.Execute(ctx, usecase.SendMessageInput{
		ConversationID:   req.ConversationID,
		SenderID:         conn.UserID(),
		Content:          req.Content,
		CorrelationToken: req.CorrelationToken,
	})
	if err != nil {
		b.log.Warn().Err(err).
			Str("conversation_id", req.ConversationID).
			Str("sender_id", conn.UserID()).
			Msg("send rejected")
		b.replyError(conn, req, sendErrorDetail(err))
		return
	}

	if err := b.Publish(ctx, *stored, req.CorrelationToken); err != nil {
		// The message is durable; only the fan-out failed. The sender still
		// gets an error so its client can retry (the dedupe key makes that
		// retry converge on this same row).
		b.replyError(conn, req, "message stored but confirmation failed")
	}
}

// Publish routes the confirmation event for a persisted message to every
// participant of its conversation.
func (b *Broker) Publish(ctx context.Context, m chat.Message, correlationToken string) error {
	payload, err := json.Marshal(newMessageEvent(m, correlationToken))
	if err != nil {
		return err
	}

	participants, err := b.listUC.Execute(ctx, usecase.ListParticipantsInput{ConversationID: m.ConversationID})
	if err != nil {
		return err
	}

	for _, userID := range participants {
		delivered := b.router.Route(userID, payload)
		b.log.Debug().
			Str("message_id", m.ID).
			Str("user_id", userID).
			Int("delivered", delivered).
			Msg("confirmation routed")
	}
	return nil
}

func (b *Broker) replyError(conn realtime.Conn, req SendRequest, detail string) {
	payload, err := json.Marshal(SendErrorEvent{
		Type:             eventSendError,
		Error:            detail,
		CorrelationToken: req.CorrelationToken,
		ConversationID:   req.ConversationID,
	})
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}

// sendErrorDetail maps internal errors to the client-facing failure reason
// without leaking infrastructure detail.
func sendErrorDetail(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotParticipant):
		return "sender is not a participant in this conversation"
	case errors.Is(err, chat.ErrEmptyMessage):
		return "message content is empty"
	case errors.Is(err, chat.ErrInvalidConversation):
		return "conversation is required"
	case errors.Is(err, usecase.ErrPersistence):
		return "failed to persist message"
	default:
		return err.Error()
	}
}
