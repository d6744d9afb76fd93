package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// ProviderSettingsRepositoryPG implements domain.ProviderSettingsRepository,
// storing each user's provider settings as a JSON document.
type ProviderSettingsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProviderSettingsRepository creates a settings repository backed by PostgreSQL.
func NewProviderSettingsRepository(pool *pgxpool.Pool) *ProviderSettingsRepositoryPG {
	return &ProviderSettingsRepositoryPG{pool: pool}
}

func (r *ProviderSettingsRepositoryPG) Get(ctx context.Context, userID, providerID string) (map[string]any, error) {
	query := `
SELECT settings
FROM provider_settings
WHERE user_id = $1 AND provider_id = $2;
`
	row := r.pool.QueryRow(ctx, query, userID, providerID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var settings map[string]any
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decode provider settings: %w", err)
	}
	return settings, nil
}

func (r *ProviderSettingsRepositoryPG) Put(ctx context.Context, userID, providerID string, settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode provider settings: %w", err)
	}
	query := `
INSERT INTO provider_settings (user_id, provider_id, settings, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id, provider_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW();
`
	_, err = r.pool.Exec(ctx, query, userID, providerID, raw)
	return err
}
