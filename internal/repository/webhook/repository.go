package webhook

import (
	"context"
	"net/http"
	"time"

	"shopcore/internal/domain"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusDead       = "dead"
)

// Task is a provider callback waiting to be reconciled.
type Task struct {
	ID            string
	Provider      domain.PaymentProvider
	Body          []byte
	Headers       http.Header
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Repository interface {
	Enqueue(ctx context.Context, provider domain.PaymentProvider, body []byte, headers http.Header) (*Task, error)
	// Claim leases up to limit due tasks and counts the attempt. Tasks whose
	// lease expired are claimable again.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Task, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, next time.Time, lastErr string) error
	Bury(ctx context.Context, id string, lastErr string) error
	ListDead(ctx context.Context, limit int) ([]Task, error)
	// Requeue moves a dead task back to pending with a fresh attempt budget.
	Requeue(ctx context.Context, id string) error
}
