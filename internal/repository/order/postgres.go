package order

import (
	"context"
	"errors"
	"fmt"

	"shopcore/internal/db"
	"shopcore/internal/domain"
	"shopcore/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const orderColumns = `id::text, user_id, shop_id::text, order_number, status, total_amount::text, currency,
COALESCE(shipping_address, ''), COALESCE(shipping_method, ''), shipping_cost::text, COALESCE(payment_method, ''),
created_at, updated_at`

const orderNumberConstraint = "orders_order_number_key"

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("order_repo")}
}

func (r *postgresRepo) Create(ctx context.Context, in NewOrder) (*domain.Order, error) {
	total := domain.LinesTotal(in.Lines)

	var created *domain.Order
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		q := `
INSERT INTO orders (user_id, shop_id, order_number, status, total_amount, currency,
                    shipping_address, shipping_method, shipping_cost, payment_method)
VALUES ($1, $2, $3, 'pending', $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''))
RETURNING ` + orderColumns
		o, err := scanOrder(tx.QueryRow(ctx, q,
			in.UserID, in.ShopID, in.OrderNumber, total.String(), in.Currency,
			in.ShippingAddress, in.ShippingMethod, in.ShippingCost.String(), in.PaymentMethod,
		))
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, l := range in.Lines {
			batch.Queue(`
INSERT INTO order_lines (order_id, product_id, product_name, quantity, unit_price, position)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text
`, o.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice.String(), i)
		}
		results := tx.SendBatch(ctx, batch)
		for _, l := range in.Lines {
			line := l
			line.OrderID = o.ID
			if err := results.QueryRow().Scan(&line.ID); err != nil {
				results.Close()
				return fmt.Errorf("insert order line: %w", err)
			}
			o.Lines = append(o.Lines, line)
		}
		if err := results.Close(); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, orderNumberConstraint) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("create order", zap.String("user_id", in.UserID), zap.String("shop_id", in.ShopID), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("order created",
		zap.String("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.String("total", created.TotalAmount.String()),
	)
	return created, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.attachLines(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, f ListFilter) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC, id DESC
OFFSET $3 LIMIT $4`
	return r.list(ctx, q, userID, f)
}

func (r *postgresRepo) ListByShop(ctx context.Context, shopID string, f ListFilter) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
WHERE shop_id = $1 AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC, id DESC
OFFSET $3 LIMIT $4`
	return r.list(ctx, q, shopID, f)
}

func (r *postgresRepo) list(ctx context.Context, q, owner string, f ListFilter) ([]domain.Order, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, q, owner, status, f.Skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	result := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, *o)
	}
	return result, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus, from []domain.OrderStatus) (*domain.Order, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}
	q := `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY($3)
RETURNING ` + orderColumns
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id, string(to), allowed))
	if err == nil {
		r.logger.Info("order status changed", zap.String("order_id", id), zap.String("status", string(to)))
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return nil, &domain.InvalidTransitionError{Entity: "order", ID: id, From: current, To: string(to)}
}

func (r *postgresRepo) attachLines(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}
	rows, err := r.pool.Query(ctx, `
SELECT id::text, order_id::text, product_id::text, product_name, quantity, unit_price::text
FROM order_lines
WHERE order_id::text = ANY($1)
ORDER BY order_id, position
`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l     domain.OrderLine
			price string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &price); err != nil {
			return err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("order line %s price: %w", l.ID, err)
		}
		if o := byID[l.OrderID]; o != nil {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                     domain.Order
		status, total, shipCo string
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &o.ShopID, &o.OrderNumber, &status, &total, &o.Currency,
		&o.ShippingAddress, &o.ShippingMethod, &shipCo, &o.PaymentMethod,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	var err error
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	if o.ShippingCost, err = decimal.NewFromString(shipCo); err != nil {
		return nil, fmt.Errorf("order %s shipping cost: %w", o.ID, err)
	}
	return &o, nil
}
