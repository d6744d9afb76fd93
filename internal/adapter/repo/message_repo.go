package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// MessageRepositoryPG implements domain.MessageRepository.
type MessageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a message repository backed by PostgreSQL.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepositoryPG {
	return &MessageRepositoryPG{pool: pool}
}

func (r *MessageRepositoryPG) Create(ctx context.Context, msg *domain.Message) error {
	query := `
INSERT INTO messages (id, user_id, chat_id, content, role, type, generation_id, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.UserID, msg.ChatID, msg.Content, msg.Role, msg.Type, msg.GenerationID, nullableBytes(msg.Metadata), msg.CreatedAt, msg.UpdatedAt)
	return err
}

func (r *MessageRepositoryPG) ListByChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	query := `
SELECT id, user_id, chat_id, content, role, type, COALESCE(generation_id, ''), metadata, created_at, updated_at
FROM messages
WHERE chat_id = $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.ChatID, &msg.Content, &msg.Role, &msg.Type, &msg.GenerationID, &msg.Metadata, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *MessageRepositoryPG) LatestCompletedAssistantImage(ctx context.Context, chatID string) (*domain.Message, error) {
	query := `
SELECT m.id, m.user_id, m.chat_id, m.content, m.role, m.type, COALESCE(m.generation_id, ''), m.metadata, m.created_at, m.updated_at
FROM messages m
JOIN generations g ON g.id = m.generation_id
WHERE m.chat_id = $1 AND m.role = 'assistant' AND m.type = 'image'
  AND g.status = 'completed' AND COALESCE(array_length(g.file_ids, 1), 0) > 0
ORDER BY m.created_at DESC
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, query, chatID)
	var msg domain.Message
	if err := row.Scan(&msg.ID, &msg.UserID, &msg.ChatID, &msg.Content, &msg.Role, &msg.Type, &msg.GenerationID, &msg.Metadata, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
