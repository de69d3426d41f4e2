package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apaluca/CipherTalk/internal/auth"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/usecase"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/adapter"
)

// ListConversationsController returns the caller's conversations ordered by
// latest activity, each with its denormalized last-message summary (one
// controller per endpoint).
type ListConversationsController struct {
	UC *usecase.ListConversationsUseCase
}

func NewListConversationsController(pool *pgxpool.Pool) *ListConversationsController {
	repo := adapter.NewPgChatRepository(pool)
	return &ListConversationsController{UC: usecase.NewListConversationsUseCase(repo)}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		convs, err := h.UC.Execute(ctx, usecase.ListConversationsInput{UserID: userID})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(convs))
		for _, conv := range convs {
			entry := gin.H{
				"id":           conv.ID,
				"created_at":   conv.CreatedAt,
				"updated_at":   conv.UpdatedAt,
				"participants": conv.ParticipantIDs,
				"other_user":   conv.OtherParticipant(userID),
			}
			if last := conv.LastMessage; last != nil {
				entry["last_message"] = gin.H{
					"id":         last.MessageID,
					"content":    last.Content,
					"sender_id":  last.SenderID,
					"created_at": last.CreatedAt,
				}
			}
			out = append(out, entry)
		}

		c.JSON(http.StatusOK, gin.H{"conversations": out, "count": len(out)})
	}
}
