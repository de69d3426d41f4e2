package repository

import (
	"context"
	"errors"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
)

var (
	ErrUserNotFound  = errors.New("repository: user not found")
	ErrDuplicateUser = errors.New("repository: username or email already taken")
)

// UserRepository defines the contract for user persistence.
type UserRepository interface {
	Create(ctx context.Context, u *chat.User) error
	FindByID(ctx context.Context, id string) (*chat.User, error)
	FindByEmail(ctx context.Context, email string) (*chat.User, error)
	// List returns all users except excludeID (pass "" for everyone).
	List(ctx context.Context, excludeID string) ([]chat.User, error)
}
