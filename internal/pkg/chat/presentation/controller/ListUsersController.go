package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apaluca/CipherTalk/internal/auth"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/broker"
	"github.com/apaluca/CipherTalk/internal/repository/adapter"
	repository "github.com/apaluca/CipherTalk/internal/repository/port"
)

// ListUsersController returns every other account with a live presence flag,
// so a client can start a conversation with anyone (one controller per
// endpoint).
type ListUsersController struct {
	users    repository.UserRepository
	presence *broker.Presence
}

func NewListUsersController(pool *pgxpool.Pool, presence *broker.Presence) *ListUsersController {
	return &ListUsersController{users: adapter.NewPgUserRepository(pool), presence: presence}
}

func (h *ListUsersController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		selfID := auth.UserID(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		users, err := h.users.List(ctx, selfID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
			return
		}

		out := make([]gin.H, 0, len(users))
		for _, u := range users {
			out = append(out, gin.H{
				"id":         u.ID,
				"username":   u.Username,
				"email":      u.Email,
				"avatar_url": u.AvatarURL,
				"online":     h.presence.IsOnline(ctx, u.ID),
			})
		}

		c.JSON(http.StatusOK, gin.H{"users": out, "count": len(out)})
	}
}
