package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apaluca/CipherTalk/internal/auth"
	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/usecase"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/adapter"
)

// CreateConversationController handles opening the DM with another user
// (one controller per endpoint).
type CreateConversationController struct {
	UC *usecase.CreateConversationUseCase
}

func NewCreateConversationController(pool *pgxpool.Pool) *CreateConversationController {
	repo := adapter.NewPgChatRepository(pool)
	return &CreateConversationController{UC: usecase.NewCreateConversationUseCase(repo)}
}

type createConversationRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

func (h *CreateConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := usecase.CreateConversationInput{
			CreatorID:     auth.UserID(c),
			ParticipantID: req.ParticipantID,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		res, err := h.UC.Execute(ctx, in)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			} else if errors.Is(err, chat.ErrSelfConversation) {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		// Re-requesting an existing pair returns the conversation with 200.
		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{
			"id":           res.Conversation.ID,
			"created_at":   res.Conversation.CreatedAt,
			"updated_at":   res.Conversation.UpdatedAt,
			"participants": res.Conversation.ParticipantIDs,
		})
	}
}
