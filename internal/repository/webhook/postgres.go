package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shopcore/internal/domain"
	"shopcore/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const taskColumns = `id::text, provider, body, headers, status, attempts, COALESCE(last_error, ''), next_attempt_at, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("webhook_repo")}
}

func (r *postgresRepo) Enqueue(ctx context.Context, provider domain.PaymentProvider, body []byte, headers http.Header) (*Task, error) {
	rawHeaders, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	q := `INSERT INTO webhook_tasks (provider, body, headers) VALUES ($1, $2, $3) RETURNING ` + taskColumns
	t, err := scanTask(r.pool.QueryRow(ctx, q, string(provider), body, rawHeaders))
	if err != nil {
		r.logger.Error("enqueue webhook", zap.String("provider", string(provider)), zap.Error(err))
		return nil, err
	}
	return t, nil
}

func (r *postgresRepo) Claim(ctx context.Context, limit int, lease time.Duration) ([]Task, error) {
	q := `
UPDATE webhook_tasks SET
    status = 'processing',
    attempts = attempts + 1,
    locked_until = now() + $2::float8 * interval '1 millisecond',
    updated_at = now()
WHERE id IN (
    SELECT id FROM webhook_tasks
    WHERE (status = 'pending' AND next_attempt_at <= now())
       OR (status = 'processing' AND locked_until < now())
    ORDER BY next_attempt_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + taskColumns
	rows, err := r.pool.Query(ctx, q, limit, float64(lease.Milliseconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *postgresRepo) Complete(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE webhook_tasks SET status = 'done', locked_until = NULL, last_error = NULL, updated_at = now() WHERE id = $1`, id)
}

func (r *postgresRepo) Retry(ctx context.Context, id string, next time.Time, lastErr string) error {
	return r.exec(ctx, `
UPDATE webhook_tasks SET status = 'pending', next_attempt_at = $2, last_error = $3, locked_until = NULL, updated_at = now()
WHERE id = $1`, id, next.UTC(), lastErr)
}

func (r *postgresRepo) Bury(ctx context.Context, id string, lastErr string) error {
	return r.exec(ctx, `
UPDATE webhook_tasks SET status = 'dead', last_error = $2, locked_until = NULL, updated_at = now()
WHERE id = $1`, id, lastErr)
}

func (r *postgresRepo) ListDead(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + taskColumns + ` FROM webhook_tasks WHERE status = 'dead' ORDER BY updated_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *postgresRepo) Requeue(ctx context.Context, id string) error {
	return r.exec(ctx, `
UPDATE webhook_tasks SET status = 'pending', attempts = 0, next_attempt_at = now(), updated_at = now()
WHERE id = $1 AND status = 'dead'`, id)
}

func (r *postgresRepo) exec(ctx context.Context, q string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t          Task
		provider   string
		rawHeaders []byte
	)
	if err := row.Scan(&t.ID, &provider, &t.Body, &rawHeaders, &t.Status, &t.Attempts, &t.LastError, &t.NextAttemptAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	t.Provider = domain.PaymentProvider(provider)
	if len(rawHeaders) > 0 {
		if err := json.Unmarshal(rawHeaders, &t.Headers); err != nil {
			return nil, fmt.Errorf("decode headers of task %s: %w", t.ID, err)
		}
	}
	return &t, nil
}
