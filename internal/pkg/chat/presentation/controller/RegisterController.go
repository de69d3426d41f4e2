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
	"github.com/apaluca/CipherTalk/internal/repository/adapter"
	repository "github.com/apaluca/CipherTalk/internal/repository/port"
)

// RegisterController handles account creation (one controller per endpoint).
type RegisterController struct {
	users repository.UserRepository
	authn *auth.Authenticator
}

func NewRegisterController(pool *pgxpool.Pool, authn *auth.Authenticator) *RegisterController {
	return &RegisterController{users: adapter.NewPgUserRepository(pool), authn: authn}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *RegisterController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process password"})
			return
		}

		user := &chat.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateUser) {
				c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
			return
		}

		token, err := h.authn.IssueToken(user.ID, user.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user": gin.H{
				"id":       user.ID,
				"username": user.Username,
				"email":    user.Email,
			},
		})
	}
}
