package product

import (
	"context"
	"errors"
	"fmt"

	"shopcore/internal/domain"
	"shopcore/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const productColumns = `id::text, shop_id::text, name, COALESCE(description, ''), price::text, discount_price::text, stock, is_available, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("product_repo")}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("product not found", zap.String("product_id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("product_id", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + productColumns + ` FROM products WHERE id::text = ANY($1)`
	return r.list(ctx, q, ids)
}

func (r *postgresRepo) ListByShop(ctx context.Context, shopID string) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE shop_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, shopID)
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("listed products", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product, sku string) (*domain.Product, error) {
	const q = `
INSERT INTO products (shop_id, sku, name, description, price, discount_price, stock, is_available)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
ON CONFLICT (shop_id, sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    discount_price = EXCLUDED.discount_price,
    stock = EXCLUDED.stock,
    is_available = EXCLUDED.is_available
RETURNING ` + productColumns
	var discount *string
	if p.DiscountPrice != nil {
		s := p.DiscountPrice.String()
		discount = &s
	}
	res, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.ShopID, sku, p.Name, p.Description, p.Price.String(), discount, p.Stock, p.IsAvailable,
	))
	if err != nil {
		r.logger.Error("upsert product", zap.String("shop_id", p.ShopID), zap.String("sku", sku), zap.Error(err))
		return nil, err
	}
	return res, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p        domain.Product
		price    string
		discount *string
	)
	if err := row.Scan(&p.ID, &p.ShopID, &p.Name, &p.Description, &price, &discount, &p.Stock, &p.IsAvailable, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	if discount != nil {
		d, err := decimal.NewFromString(*discount)
		if err != nil {
			return nil, fmt.Errorf("product %s discount price: %w", p.ID, err)
		}
		p.DiscountPrice = &d
	}
	return &p, nil
}
