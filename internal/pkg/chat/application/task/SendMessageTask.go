package task

import (
	"context"
	"encoding/json"
	"time"

	qport "github.com/apaluca/CipherTalk/internal/infrastructure/queue/port"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/broker"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/usecase"
)

// SendMessageTaskType is the queue task name for the HTTP send path.
const SendMessageTaskType = "chat:send_message"

// SendMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type SendMessageTaskPayload struct {
	ConversationID   string `json:"conversationId"`
	SenderID         string `json:"senderId"`
	Content          string `json:"content"`
	CorrelationToken string `json:"correlationToken"`
}

// RegisterSendMessageTask binds the task handler to the provided server.
// The handler runs the same persist-then-broadcast pipeline as the socket
// path: SendMessageUseCase for the durable half, broker.Publish for fan-out.
// The correlation token doubles as the dedupe key, so a task retried after a
// partial failure converges on the originally stored message.
func RegisterSendMessageTask(srv qport.Server, sendUC *usecase.SendMessageUseCase, b *broker.Broker) {
	srv.Register(SendMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p SendMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return err
		}

		// give DB a reasonable time budget per task execution
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		stored, err := sendUC.Execute(ctx, usecase.SendMessageInput{
			ConversationID:   p.ConversationID,
			SenderID:         p.SenderID,
			Content:          p.Content,
			CorrelationToken: p.CorrelationToken,
		})
		if err != nil {
			// Retry/backoff policy is controlled by the queue adapter.
			return err
		}

		return b.Publish(ctx, *stored, p.CorrelationToken)
	})
}
