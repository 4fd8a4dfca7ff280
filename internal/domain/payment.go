package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentProvider string

const (
	ProviderStripe   PaymentProvider = "stripe"
	ProviderPayPal   PaymentProvider = "paypal"
	ProviderYooKassa PaymentProvider = "yookassa"
)

// Providers lists every supported provider.
var Providers = []PaymentProvider{ProviderStripe, ProviderPayPal, ProviderYooKassa}

func (p PaymentProvider) Valid() bool {
	switch p {
	case ProviderStripe, ProviderPayPal, ProviderYooKassa:
		return true
	}
	return false
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (PaymentProvider, error) {
	p := PaymentProvider(s)
	if !p.Valid() {
		return "", NewValidationError("provider", "unknown payment provider "+s)
	}
	return p, nil
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentPreStates returns the statuses a payment may leave to reach "to".
// A failed payment can still complete on a late success notification, and a
// completed one can be reversed to failed by the provider.
func PaymentPreStates(to PaymentStatus) []PaymentStatus {
	switch to {
	case PaymentStatusCompleted:
		return []PaymentStatus{PaymentStatusPending, PaymentStatusFailed}
	case PaymentStatusFailed:
		return []PaymentStatus{PaymentStatusPending, PaymentStatusCompleted}
	case PaymentStatusRefunded:
		return []PaymentStatus{PaymentStatusCompleted}
	}
	return nil
}

// Supersedes reports whether a payment already at s makes a notification
// moving it to "to" stale. A refund settles the payment for good, and any
// settled status outranks pending.
func (s PaymentStatus) Supersedes(to PaymentStatus) bool {
	if s == to {
		return false
	}
	return s == PaymentStatusRefunded || (to == PaymentStatusPending && s.Valid())
}

// OrderStatusFor maps a settled payment status onto the order status it
// implies.
func OrderStatusFor(s PaymentStatus) (OrderStatus, bool) {
	switch s {
	case PaymentStatusCompleted:
		return OrderStatusPaid, true
	case PaymentStatusFailed:
		return OrderStatusPending, true
	case PaymentStatusRefunded:
		return OrderStatusRefunded, true
	}
	return "", false
}

type Payment struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"orderId"`
	Provider PaymentProvider `json:"provider"`
	// ExternalID is the provider's id for the charge. Written once.
	ExternalID *string `json:"externalPaymentId,omitempty"`
	// ProviderReference is the provider's id for the settled money movement
	// (payment intent, capture) when it differs from ExternalID.
	ProviderReference *string         `json:"providerReference,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            PaymentStatus   `json:"status"`
	Details           json.RawMessage `json:"details,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// RefundTarget is the id the provider expects on a refund call.
func (p Payment) RefundTarget() string {
	if p.ProviderReference != nil && *p.ProviderReference != "" {
		return *p.ProviderReference
	}
	if p.ExternalID != nil {
		return *p.ExternalID
	}
	return ""
}
