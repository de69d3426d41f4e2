package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apaluca/CipherTalk/internal/auth"
	queueport "github.com/apaluca/CipherTalk/internal/infrastructure/queue/port"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/task"
)

// SendMessageController is the HTTP fallback for sending when no socket is
// open (one controller per endpoint). The message is enqueued for the worker
// pipeline; the confirmation reaches the sender over its next socket session
// or through a history fetch.
type SendMessageController struct {
	Q queueport.Client
}

func NewSendMessageController(client queueport.Client) *SendMessageController {
	return &SendMessageController{Q: client}
}

type sendMessageRequest struct {
	Content          string `json:"content" binding:"required"`
	CorrelationToken string `json:"correlation_token" binding:"required"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		payload := task.SendMessageTaskPayload{
			ConversationID:   conversationID,
			SenderID:         auth.UserID(c),
			Content:          req.Content,
			CorrelationToken: req.CorrelationToken,
		}
		b, err := json.Marshal(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task payload"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		// The correlation token keys uniqueness, so a client resubmitting the
		// same attempt cannot enqueue the work twice within the window.
		opts := queueport.EnqueueOption{Queue: "chat", MaxRetry: 20, UniqueTTL: time.Minute}
		id, err := h.Q.Enqueue(ctx, queueport.Task{Type: task.SendMessageTaskType, Payload: b}, opts)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue message"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":            "queued",
			"task_id":           id,
			"conversation_id":   conversationID,
			"correlation_token": req.CorrelationToken,
		})
	}
}
