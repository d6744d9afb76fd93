package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// GenerationRepositoryPG implements domain.GenerationRepository. Terminal
// statuses are guarded at the SQL level: every status write predicates on the
// record not yet being terminal, so a terminal status is never overwritten
// regardless of writer interleaving.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

func (r *GenerationRepositoryPG) Create(ctx context.Context, gen *domain.Generation) error {
	query := `
INSERT INTO generations (id, user_id, type, prompt, parameters, provider, model, status, file_ids, error_message, generation_time_ms, cost, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
`
	_, err := r.pool.Exec(ctx, query,
		gen.ID, gen.UserID, gen.Type, gen.Prompt, nullableBytes(gen.Parameters), gen.Provider, gen.Model,
		gen.Status, gen.FileIDs, gen.ErrorMessage, gen.GenerationTime.Milliseconds(), gen.Cost, gen.CreatedAt, gen.UpdatedAt)
	return err
}

func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	query := `
SELECT id, user_id, type, prompt, parameters, provider, model, status, file_ids, error_message, generation_time_ms, cost, created_at, updated_at
FROM generations
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var gen domain.Generation
	var tookMS int64
	if err := row.Scan(&gen.ID, &gen.UserID, &gen.Type, &gen.Prompt, &gen.Parameters, &gen.Provider, &gen.Model,
		&gen.Status, &gen.FileIDs, &gen.ErrorMessage, &tookMS, &gen.Cost, &gen.CreatedAt, &gen.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	gen.GenerationTime = time.Duration(tookMS) * time.Millisecond
	return &gen, nil
}

// MarkGenerating moves a pending generation to generating. It is a no-op for
// records already past pending, so re-entrant calls are not observable.
func (r *GenerationRepositoryPG) MarkGenerating(ctx context.Context, id string) error {
	query := `
UPDATE generations
SET status = 'generating', updated_at = NOW()
WHERE id = $1 AND status = 'pending';
`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *GenerationRepositoryPG) Complete(ctx context.Context, id string, fileIDs []string, took time.Duration) error {
	query := `
UPDATE generations
SET status = 'completed', file_ids = $2, generation_time_ms = $3, error_message = '', updated_at = NOW()
WHERE id = $1 AND status NOT IN ('completed', 'failed');
`
	tag, err := r.pool.Exec(ctx, query, id, fileIDs, took.Milliseconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrTerminal(ctx, id)
	}
	return nil
}

func (r *GenerationRepositoryPG) Fail(ctx context.Context, id string, errMsg string) error {
	query := `
UPDATE generations
SET status = 'failed', error_message = $2, updated_at = NOW()
WHERE id = $1 AND status NOT IN ('completed', 'failed');
`
	tag, err := r.pool.Exec(ctx, query, id, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrTerminal(ctx, id)
	}
	return nil
}

func (r *GenerationRepositoryPG) missOrTerminal(ctx context.Context, id string) error {
	gen, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if gen.Status.Terminal() {
		return domain.ErrTerminalStatus
	}
	return nil
}
