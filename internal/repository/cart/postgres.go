package cart

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

const lineColumns = `id::text, user_id, product_id::text, quantity, unit_price::text, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("cart_repo")}
}

func (r *postgresRepo) AddOrIncrement(ctx context.Context, userID, productID string, quantity int, unitPrice decimal.Decimal) (*domain.CartLine, error) {
	const q = `
INSERT INTO cart_lines (user_id, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT cart_lines_user_product_key DO UPDATE
SET quantity = cart_lines.quantity + EXCLUDED.quantity
RETURNING ` + lineColumns
	line, err := scanLine(r.pool.QueryRow(ctx, q, userID, productID, quantity, unitPrice.String()))
	if err != nil {
		r.logger.Error("add cart line", zap.String("user_id", userID), zap.String("product_id", productID), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("cart line saved", zap.String("user_id", userID), zap.String("line_id", line.ID), zap.Int("quantity", line.Quantity))
	return line, nil
}

func (r *postgresRepo) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	q := `SELECT ` + lineColumns + ` FROM cart_lines WHERE user_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

func (r *postgresRepo) GetLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error) {
	q := `SELECT ` + lineColumns + ` FROM cart_lines WHERE id = $1 AND user_id = $2`
	line, err := scanLine(r.pool.QueryRow(ctx, q, lineID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return line, err
}

func (r *postgresRepo) SetQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error) {
	q := `UPDATE cart_lines SET quantity = $1 WHERE id = $2 AND user_id = $3 RETURNING ` + lineColumns
	line, err := scanLine(r.pool.QueryRow(ctx, q, quantity, lineID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return line, err
}

func (r *postgresRepo) RemoveLine(ctx context.Context, userID, lineID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND user_id = $2`, lineID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	return err
}

func (r *postgresRepo) MaterializeAndClear(ctx context.Context, userID string) ([]domain.CartLine, error) {
	q := `DELETE FROM cart_lines WHERE user_id = $1 RETURNING ` + lineColumns
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		r.logger.Error("clear cart", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	lines, err := collectLines(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("cart cleared", zap.String("user_id", userID), zap.Int("lines", len(lines)))
	return lines, nil
}

func collectLines(rows pgx.Rows) ([]domain.CartLine, error) {
	defer rows.Close()
	var lines []domain.CartLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

func scanLine(row pgx.Row) (*domain.CartLine, error) {
	var (
		line  domain.CartLine
		price string
	)
	if err := row.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &price, &line.CreatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("cart line %s price: %w", line.ID, err)
	}
	line.UnitPrice = p
	return &line, nil
}
