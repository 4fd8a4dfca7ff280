package payment

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

const paymentColumns = `id::text, order_id::text, provider, external_payment_id, provider_reference,
amount::text, currency, status, details, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("payment_repo")}
}

func (r *postgresRepo) Create(ctx context.Context, in NewPayment) (*domain.Payment, error) {
	q := `
INSERT INTO payments (order_id, provider, external_payment_id, amount, currency, status, details)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, 'pending', $6)
RETURNING ` + paymentColumns
	var details []byte
	if len(in.Details) > 0 {
		details = in.Details
	}
	p, err := scanPayment(r.pool.QueryRow(ctx, q, in.OrderID, string(in.Provider), in.ExternalID, in.Amount.String(), in.Currency, details))
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("create payment", zap.String("order_id", in.OrderID), zap.String("provider", string(in.Provider)), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("payment created", zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID))
	return p, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *postgresRepo) LatestForOrder(ctx context.Context, orderID string, provider domain.PaymentProvider) (*domain.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE order_id::text = $1 AND provider = $2
ORDER BY created_at DESC, id DESC
LIMIT 1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, orderID, string(provider)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *postgresRepo) GetByExternalID(ctx context.Context, provider domain.PaymentProvider, externalID string) (*domain.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider = $1 AND external_payment_id = $2`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, string(provider), externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *postgresRepo) GetByReference(ctx context.Context, provider domain.PaymentProvider, reference string) (*domain.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE provider = $1 AND provider_reference = $2
ORDER BY created_at DESC
LIMIT 1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, string(provider), reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *postgresRepo) CountForOrder(ctx context.Context, orderID string, provider domain.PaymentProvider) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM payments WHERE order_id = $1 AND provider = $2`, orderID, string(provider)).Scan(&n)
	return n, err
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, to domain.PaymentStatus, from []domain.PaymentStatus, upd StatusUpdate) (*domain.Payment, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}
	var details []byte
	if len(upd.Details) > 0 {
		details = upd.Details
	}
	q := `
UPDATE payments SET
    status = $2,
    details = COALESCE($4::jsonb, details),
    provider_reference = COALESCE($5, provider_reference),
    updated_at = now()
WHERE id = $1 AND status = ANY($3)
RETURNING ` + paymentColumns
	p, err := scanPayment(r.pool.QueryRow(ctx, q, id, string(to), allowed, details, upd.ProviderReference))
	if err == nil {
		r.logger.Info("payment status changed", zap.String("payment_id", id), zap.String("status", string(to)))
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return nil, &domain.InvalidTransitionError{Entity: "payment", ID: id, From: current, To: string(to)}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p                domain.Payment
		provider, status string
		amount           string
		details          []byte
	)
	if err := row.Scan(&p.ID, &p.OrderID, &provider, &p.ExternalID, &p.ProviderReference,
		&amount, &p.Currency, &status, &details, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Provider = domain.PaymentProvider(provider)
	p.Status = domain.PaymentStatus(status)
	p.Details = details
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("payment %s amount: %w", p.ID, err)
	}
	return &p, nil
}
