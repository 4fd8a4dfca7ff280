package shop

import (
	"context"
	"errors"

	"shopcore/internal/domain"
	"shopcore/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shopColumns = `id::text, owner_id, name, currency, is_active, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("shop_repo")}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	q := `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`
	s, err := scanShop(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *postgresRepo) Upsert(ctx context.Context, in NewShop) (*domain.Shop, error) {
	q := `
INSERT INTO shops (owner_id, name, slug, currency)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, currency = EXCLUDED.currency
RETURNING ` + shopColumns
	return scanShop(r.pool.QueryRow(ctx, q, in.OwnerID, in.Name, in.Slug, in.Currency))
}

func (r *postgresRepo) IsAdmin(ctx context.Context, shopID, userID string) (bool, error) {
	const q = `
SELECT EXISTS (SELECT 1 FROM shops WHERE id = $1 AND owner_id = $2)
    OR EXISTS (SELECT 1 FROM shop_admins WHERE shop_id = $1 AND user_id = $2)
`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, shopID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *postgresRepo) AddAdmin(ctx context.Context, shopID, userID string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO shop_admins (shop_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, shopID, userID)
	return err
}

func (r *postgresRepo) IsProviderEnabled(ctx context.Context, shopID string, provider domain.PaymentProvider) (bool, error) {
	const q = `SELECT enabled FROM shop_payment_providers WHERE shop_id::text = $1 AND provider = $2`
	var enabled bool
	err := r.pool.QueryRow(ctx, q, shopID, string(provider)).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return enabled, err
}

func (r *postgresRepo) SetProviderEnabled(ctx context.Context, shopID string, provider domain.PaymentProvider, enabled bool) error {
	const q = `
INSERT INTO shop_payment_providers (shop_id, provider, enabled)
VALUES ($1, $2, $3)
ON CONFLICT (shop_id, provider) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()
`
	if _, err := r.pool.Exec(ctx, q, shopID, string(provider), enabled); err != nil {
		return err
	}
	r.logger.Info("shop provider updated", zap.String("shop_id", shopID), zap.String("provider", string(provider)), zap.Bool("enabled", enabled))
	return nil
}

func (r *postgresRepo) ListProviders(ctx context.Context, shopID string) ([]domain.ShopProvider, error) {
	rows, err := r.pool.Query(ctx, `SELECT shop_id::text, provider, enabled FROM shop_payment_providers WHERE shop_id = $1 ORDER BY provider`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ShopProvider
	for rows.Next() {
		var (
			sp       domain.ShopProvider
			provider string
		)
		if err := rows.Scan(&sp.ShopID, &provider, &sp.Enabled); err != nil {
			return nil, err
		}
		sp.Provider = domain.PaymentProvider(provider)
		result = append(result, sp)
	}
	return result, rows.Err()
}

func scanShop(row pgx.Row) (*domain.Shop, error) {
	var s domain.Shop
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Currency, &s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
