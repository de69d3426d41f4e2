package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apaluca/CipherTalk/internal/auth"
	"github.com/apaluca/CipherTalk/internal/repository/adapter"
	repository "github.com/apaluca/CipherTalk/internal/repository/port"
)

// LoginController handles credential exchange for a bearer token (one
// controller per endpoint).
type LoginController struct {
	users repository.UserRepository
	authn *auth.Authenticator
}

func NewLoginController(pool *pgxpool.Pool, authn *auth.Authenticator) *LoginController {
	return &LoginController{users: adapter.NewPgUserRepository(pool), authn: authn}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *LoginController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		user, err := h.users.FindByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				// Identical response for unknown email and bad password.
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up account"})
			return
		}

		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := h.authn.IssueToken(user.ID, user.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":       user.ID,
				"username": user.Username,
				"email":    user.Email,
			},
		})
	}
}
