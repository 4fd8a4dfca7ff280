// Package gateway adapts external payment providers to one interface.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
)

// LineItem is an order line as shown on the provider's checkout page.
type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type ChargeRequest struct {
	OrderID     string
	OrderNumber string
	// Amount is the full amount to collect: ItemsTotal plus Shipping.
	Amount     decimal.Decimal
	ItemsTotal decimal.Decimal
	Shipping   decimal.Decimal
	Currency   string
	Lines      []LineItem
	ReturnURL  string
	CancelURL  string
	// IdempotencyKey is sent on every retry of the same charge.
	IdempotencyKey string
}

// NewChargeRequest builds a charge for the order's lines and shipping cost.
func NewChargeRequest(o domain.Order, returnURL, cancelURL, idempotencyKey string) ChargeRequest {
	req := ChargeRequest{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		Amount:         o.ChargeAmount(),
		ItemsTotal:     o.TotalAmount,
		Shipping:       o.ShippingCost,
		Currency:       o.Currency,
		ReturnURL:      returnURL,
		CancelURL:      cancelURL,
		IdempotencyKey: idempotencyKey,
	}
	for _, l := range o.Lines {
		req.Lines = append(req.Lines, LineItem{Name: l.ProductName, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return req
}

// Charge is the provider's answer to CreateCharge.
type Charge struct {
	ExternalID  string
	RedirectURL string
	Raw         json.RawMessage
}

// Callback is a provider notification in canonical form. When Handled is
// false the event is irrelevant to reconciliation.
type Callback struct {
	Handled   bool
	EventID   string
	EventType string
	Status    domain.PaymentStatus
	// OrderID is taken from the metadata attached at charge creation.
	OrderID string
	// ExternalID identifies the charge when the event carries no order id.
	ExternalID string
	// ProviderReference is the id of the settled money movement, kept for refunds.
	ProviderReference string
}

type RefundRequest struct {
	OrderID           string
	ExternalID        string
	ProviderReference string
	// Amount is nil for a full refund of PaymentAmount.
	Amount         *decimal.Decimal
	PaymentAmount  decimal.Decimal
	Currency       string
	IdempotencyKey string
}

type Refund struct {
	RefundID string
	Status   string
	Raw      json.RawMessage
}

// Adapter is implemented once per provider. VerifyCallback never panics and
// returns false on malformed input.
type Adapter interface {
	Provider() domain.PaymentProvider
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	VerifyCallback(ctx context.Context, body []byte, headers http.Header) bool
	TranslateCallback(body []byte) (Callback, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
}

// Registry holds the adapters of every configured provider.
type Registry struct {
	adapters map[domain.PaymentProvider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.PaymentProvider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Get returns the adapter for p, or domain.ErrProviderDisabled when the
// provider has no credentials.
func (r *Registry) Get(p domain.PaymentProvider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%s is not configured: %w", p, domain.ErrProviderDisabled)
	}
	return a, nil
}

func (r *Registry) Providers() []domain.PaymentProvider {
	out := make([]domain.PaymentProvider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
