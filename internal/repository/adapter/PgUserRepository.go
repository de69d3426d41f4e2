package adapter

import (
	"context"
	"errors"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	repository "github.com/apaluca/CipherTalk/internal/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

var _ repository.UserRepository = (*PgUserRepository)(nil)

func (r *PgUserRepository) Create(ctx context.Context, u *chat.User) error {
	if r == nil || r.pool == nil {
		return errors.New("PgUserRepository: nil pool")
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat.app_user (username, email, password_hash, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id::text
	`, u.Username, u.Email, u.PasswordHash, u.AvatarURL, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (r *PgUserRepository) FindByID(ctx context.Context, id string) (*chat.User, error) {
	return r.findBy(ctx, "id = $1::uuid", id)
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*chat.User, error) {
	return r.findBy(ctx, "email = $1", email)
}

func (r *PgUserRepository) findBy(ctx context.Context, where string, arg any) (*chat.User, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgUserRepository: nil pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, username, email, password_hash, avatar_url, created_at, updated_at
		FROM chat.app_user
		WHERE `+where, arg)

	var u chat.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) List(ctx context.Context, excludeID string) ([]chat.User, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgUserRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, username, email, avatar_url, created_at, updated_at
		FROM chat.app_user
		WHERE $1 = '' OR id::text <> $1
		ORDER BY username
	`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []chat.User
	for rows.Next() {
		var u chat.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
