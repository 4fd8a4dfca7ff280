package payment

import (
	"context"
	"encoding/json"

	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
)

type NewPayment struct {
	OrderID    string
	Provider   domain.PaymentProvider
	ExternalID string
	Amount     decimal.Decimal
	Currency   string
	Details    json.RawMessage
}

// StatusUpdate is applied together with a status change. Nil fields keep the
// stored value.
type StatusUpdate struct {
	Details           json.RawMessage
	ProviderReference *string
}

type Repository interface {
	Create(ctx context.Context, in NewPayment) (*domain.Payment, error)
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	// LatestForOrder returns the most recent payment for the order made
	// through provider.
	LatestForOrder(ctx context.Context, orderID string, provider domain.PaymentProvider) (*domain.Payment, error)
	GetByExternalID(ctx context.Context, provider domain.PaymentProvider, externalID string) (*domain.Payment, error)
	GetByReference(ctx context.Context, provider domain.PaymentProvider, reference string) (*domain.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
	CountForOrder(ctx context.Context, orderID string, provider domain.PaymentProvider) (int, error)
	// UpdateStatus moves the payment to "to" only if its current status is
	// one of "from". Otherwise it returns domain.ErrNotFound or a
	// *domain.InvalidTransitionError carrying the observed status.
	UpdateStatus(ctx context.Context, id string, to domain.PaymentStatus, from []domain.PaymentStatus, upd StatusUpdate) (*domain.Payment, error)
}
