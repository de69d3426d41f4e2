package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apaluca/CipherTalk/internal/auth"
	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/usecase"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/adapter"
)

// GetMessagesController handles fetching a conversation's history in
// chronological order (one controller per endpoint). Fetching marks the other
// side's messages read unless mark_read=false is passed.
type GetMessagesController struct {
	UC *usecase.GetMessagesUseCase
}

func NewGetMessagesController(pool *pgxpool.Pool) *GetMessagesController {
	repo := adapter.NewPgChatRepository(pool)
	return &GetMessagesController{UC: usecase.NewGetMessagesUseCase(repo)}
}

func (h *GetMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		// Defaults
		limit := 50
		offset := 0
		markRead := true

		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		if v := c.Query("mark_read"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				markRead = b
			}
		}

		in := usecase.GetMessagesInput{
			ConversationID: conversationID,
			ReaderID:       auth.UserID(c),
			Limit:          limit,
			Offset:         offset,
			MarkRead:       markRead,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, in)
		if err != nil {
			status := http.StatusBadRequest
			switch {
			case errors.Is(err, chat.ErrNotParticipant):
				status = http.StatusForbidden
			case errors.Is(err, usecase.ErrPersistence):
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, gin.H{
				"id":              m.ID,
				"conversation_id": m.ConversationID,
				"sender_id":       m.SenderID,
				"content":         m.Content,
				"created_at":      m.CreatedAt,
				"read":            m.Read,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": out,
			"limit":    limit,
			"offset":   offset,
			"count":    len(out),
		})
	}
}
