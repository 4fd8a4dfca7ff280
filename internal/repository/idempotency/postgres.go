package idempotency

import (
	"context"

	"shopcore/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetOrCreate(ctx context.Context, provider domain.PaymentProvider, scope, candidate string) (*Key, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	const q = `
INSERT INTO provider_idempotency_keys (provider, scope, idempotency_key)
VALUES ($1, $2, $3)
ON CONFLICT (provider, scope) DO UPDATE SET provider = EXCLUDED.provider
RETURNING idempotency_key, COALESCE(external_id, '')
`
	k := Key{Provider: provider, Scope: scope}
	if err := r.pool.QueryRow(ctx, q, string(provider), scope, candidate).Scan(&k.Value, &k.ExternalID); err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *postgresRepo) RecordExternalID(ctx context.Context, provider domain.PaymentProvider, scope, externalID string) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE provider_idempotency_keys SET external_id = $3
WHERE provider = $1 AND scope = $2
`, string(provider), scope, externalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
