package adapter

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	chat "github.com/apaluca/CipherTalk/internal/pkg/chat/application/domain"
	repository "github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

// pairKey canonicalizes an unordered participant pair. A unique constraint
// on it makes conversation creation race-free: concurrent creates for the
// same pair converge on one row.
func pairKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}

func (r *PgChatRepository) CreateConversation(ctx context.Context, c chat.Conversation, participantIDs []string) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgChatRepository: nil pool")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO chat.conversation (pair_key, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (pair_key) DO UPDATE SET pair_key = EXCLUDED.pair_key
		RETURNING id::text
	`, pairKey(participantIDs), c.CreatedAt).Scan(&id)
	if err != nil {
		return "", err
	}

	for _, uid := range participantIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat.participant (conversation_id, user_id)
			VALUES ($1::uuid, $2::uuid)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, id, uid); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *PgChatRepository) GetConversationByParticipants(ctx context.Context, userAID, userBID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT c.id::text, c.created_at, c.updated_at
		FROM chat.conversation c
		JOIN chat.participant pa ON pa.conversation_id = c.id AND pa.user_id = $1::uuid
		JOIN chat.participant pb ON pb.conversation_id = c.id AND pb.user_id = $2::uuid
		LIMIT 1
	`, userAID, userBID)

	var conv chat.Conversation
	if err := row.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrConversationNotFound
		}
		return nil, err
	}
	conv.ParticipantIDs = []string{userAID, userBID}
	return &conv, nil
}

func (r *PgChatRepository) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT c.id::text, c.created_at, c.updated_at,
		       COALESCE(array_agg(p.user_id::text ORDER BY p.user_id), '{}')
		FROM chat.conversation c
		LEFT JOIN chat.participant p ON p.conversation_id = c.id
		WHERE c.id = $1::uuid
		GROUP BY c.id
	`, conversationID)

	var conv chat.Conversation
	if err := row.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt, &conv.ParticipantIDs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *PgChatRepository) ListConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text, c.created_at, c.updated_at,
		       c.last_message_id::text, c.last_message_content, c.last_message_sender_id::text, c.last_message_at,
		       COALESCE(array_agg(p.user_id::text ORDER BY p.user_id), '{}')
		FROM chat.conversation c
		JOIN chat.participant me ON me.conversation_id = c.id AND me.user_id = $1::uuid
		LEFT JOIN chat.participant p ON p.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []chat.Conversation
	for rows.Next() {
		var (
			conv     chat.Conversation
			lastID   *string
			lastBody *string
			lastFrom *string
			lastAt   *time.Time
		)
		if err := rows.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt,
			&lastID, &lastBody, &lastFrom, &lastAt, &conv.ParticipantIDs); err != nil {
			return nil, err
		}
		if lastID != nil && lastBody != nil && lastFrom != nil && lastAt != nil {
			conv.LastMessage = &chat.Summary{
				MessageID: *lastID,
				Content:   *lastBody,
				SenderID:  *lastFrom,
				CreatedAt: *lastAt,
			}
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (r *PgChatRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgChatRepository: nil pool")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat.participant
			WHERE conversation_id = $1::uuid AND user_id = $2::uuid
		)
	`, conversationID, userID).Scan(&exists)
	return exists, err
}

func (r *PgChatRepository) ListParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id::text FROM chat.participant WHERE conversation_id = $1::uuid
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	// The DO UPDATE arm is a no-op write that lets RETURNING yield the
	// existing row, so a replayed dedupe key converges on the original
	// message instead of inserting a duplicate. Content comes back from the
	// row, not the request: a replay with altered content is confirmed with
	// what was actually stored.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO chat.message (conversation_id, sender_id, content, created_at, read, dedupe_key)
		VALUES ($1::uuid, $2::uuid, $3, $4, FALSE, $5)
		ON CONFLICT (conversation_id, sender_id, dedupe_key)
		DO UPDATE SET dedupe_key = EXCLUDED.dedupe_key
		RETURNING id::text, content, created_at, read
	`, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.DedupeKey)

	stored := m
	if err := row.Scan(&stored.ID, &stored.Content, &stored.CreatedAt, &stored.Read); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *PgChatRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	// Page from the newest backwards, then flip to chronological order.
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, sender_id::text, content, created_at, read, dedupe_key
		FROM chat.message
		WHERE conversation_id = $1::uuid
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt, &m.Read, &m.DedupeKey); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *PgChatRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE chat.message
		SET read = TRUE
		WHERE conversation_id = $1::uuid AND sender_id <> $2::uuid AND read = FALSE
	`, conversationID, readerID)
	return err
}

func (r *PgChatRepository) UpdateConversationSummary(ctx context.Context, m chat.Message) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	// Unconditional last-write-wins by persistence order; updated_at is
	// guarded so it never regresses.
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation
		SET last_message_id = $2::uuid,
		    last_message_content = $3,
		    last_message_sender_id = $4::uuid,
		    last_message_at = $5,
		    updated_at = GREATEST(updated_at, $5)
		WHERE id = $1::uuid
	`, m.ConversationID, m.ID, m.Content, m.SenderID, m.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrConversationNotFound
	}
	return nil
}
