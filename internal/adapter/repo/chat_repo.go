// Package repo provides the persistence adapters behind the domain
// repository interfaces: PostgreSQL implementations backed by pgx, and
// in-memory implementations for tests and database-less deployments.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// ChatRepositoryPG implements domain.ChatRepository.
type ChatRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a chat repository backed by PostgreSQL.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepositoryPG {
	return &ChatRepositoryPG{pool: pool}
}

func (r *ChatRepositoryPG) Create(ctx context.Context, chat *domain.Chat) error {
	query := `
INSERT INTO chats (id, user_id, title, provider, model, deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		chat.ID, chat.UserID, chat.Title, chat.Provider, chat.Model, chat.Deleted, chat.CreatedAt, chat.UpdatedAt)
	return err
}

func (r *ChatRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	query := `
SELECT id, user_id, title, provider, model, deleted, created_at, updated_at
FROM chats
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var chat domain.Chat
	if err := row.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Provider, &chat.Model, &chat.Deleted, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	query := `
SELECT id, user_id, title, provider, model, deleted, created_at, updated_at
FROM chats
WHERE user_id = $1 AND deleted = FALSE
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var chat domain.Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Provider, &chat.Model, &chat.Deleted, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (r *ChatRepositoryPG) Update(ctx context.Context, chat *domain.Chat) error {
	query := `
UPDATE chats
SET title = $2, provider = $3, model = $4, updated_at = $5
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, chat.ID, chat.Title, chat.Provider, chat.Model, chat.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatRepositoryPG) SoftDelete(ctx context.Context, id string) error {
	query := `
UPDATE chats
SET deleted = TRUE, updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatRepositoryPG) Touch(ctx context.Context, id string, at time.Time) error {
	query := `
UPDATE chats
SET updated_at = $2
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}
