// Package idempotency stores the keys sent to payment providers so that a
// retried charge or refund reuses the key of the first attempt.
package idempotency

import (
	"context"

	"shopcore/internal/domain"
)

// Key is the stored idempotency key for (Provider, Scope).
type Key struct {
	Provider   domain.PaymentProvider
	Scope      string
	Value      string
	ExternalID string
}

type Repository interface {
	// GetOrCreate returns the key for (provider, scope), storing candidate if
	// none exists yet.
	GetOrCreate(ctx context.Context, provider domain.PaymentProvider, scope, candidate string) (*Key, error)
	// RecordExternalID remembers the provider object created with the key.
	RecordExternalID(ctx context.Context, provider domain.PaymentProvider, scope, externalID string) error
}
