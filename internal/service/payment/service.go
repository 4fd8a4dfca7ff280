// Package payment is the reconciliation engine between orders, payments and
// the provider adapters.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"shopcore/internal/domain"
	"shopcore/internal/gateway"
	"shopcore/internal/logging"
	"shopcore/internal/repository/idempotency"
	paymentrepo "shopcore/internal/repository/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrCallbackRejected marks a callback that can never be applied: a bad
// signature or a payload the adapter cannot read. Retrying it is pointless.
var ErrCallbackRejected = errors.New("callback rejected")

type ledger interface {
	Find(ctx context.Context, id string) (*domain.Order, error)
	Transition(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error)
	RequireShopAdmin(ctx context.Context, shopID, userID string) error
}

type shopSettings interface {
	IsProviderEnabled(ctx context.Context, shopID string, provider domain.PaymentProvider) (bool, error)
}

type adapterSource interface {
	Get(p domain.PaymentProvider) (gateway.Adapter, error)
}

type Service struct {
	payments    paymentrepo.Repository
	orders      ledger
	shops       shopSettings
	keys        idempotency.Repository
	adapters    adapterSource
	frontendURL string
	logger      *zap.Logger
}

func New(payments paymentrepo.Repository, orders ledger, shops shopSettings, keys idempotency.Repository, adapters adapterSource, frontendURL string, logger *zap.Logger) *Service {
	return &Service{
		payments:    payments,
		orders:      orders,
		shops:       shops,
		keys:        keys,
		adapters:    adapters,
		frontendURL: frontendURL,
		logger:      logging.OrNop(logger).Named("payment"),
	}
}

type InitiateInput struct {
	OrderID  string
	Provider domain.PaymentProvider
	CallerID string
}

// PaymentResult is the outcome of Initiate. A provider failure is a result
// with Success false, not an error.
type PaymentResult struct {
	Success     bool   `json:"success"`
	PaymentID   string `json:"paymentId,omitempty"`
	ExternalID  string `json:"externalPaymentId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

type RefundInput struct {
	CallerID  string
	PaymentID string
	// Amount is nil for a full refund.
	Amount *decimal.Decimal
}

type RefundResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	RefundID  string `json:"refundId,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Initiate creates a provider charge for a pending order and records a
// pending payment for it. Nothing is persisted when the provider fails.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*PaymentResult, error) {
	o, err := s.orders.Find(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != in.CallerID {
		return nil, fmt.Errorf("pay for order %s: %w", o.ID, domain.ErrForbidden)
	}
	if o.Status != domain.OrderStatusPending {
		return nil, domain.NewValidationError("orderId", fmt.Sprintf("order is %s, cannot create payment", o.Status))
	}
	enabled, err := s.shops.IsProviderEnabled(ctx, o.ShopID, in.Provider)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("%s for shop %s: %w", in.Provider, o.ShopID, domain.ErrProviderDisabled)
	}
	adapter, err := s.adapters.Get(in.Provider)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("provider", string(in.Provider)), zap.String("order_id", o.ID))

	// Each new attempt for the order gets its own scope; a retry of a failed
	// attempt reuses the key so the provider can deduplicate.
	attempts, err := s.payments.CountForOrder(ctx, o.ID, in.Provider)
	if err != nil {
		return nil, err
	}
	scope := fmt.Sprintf("charge:%s:%d", o.ID, attempts)
	key, err := s.keys.GetOrCreate(ctx, in.Provider, scope, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("idempotency key: %w", err)
	}

	base := s.frontendURL + "/payment/" + o.ID
	req := gateway.NewChargeRequest(*o, base+"/success", base+"/cancel", key.Value)
	charge, err := adapter.CreateCharge(ctx, req)
	if err != nil {
		log.Warn("charge not created", zap.Error(err))
		return &PaymentResult{Success: false, Message: failureMessage(err)}, nil
	}
	if err := s.keys.RecordExternalID(ctx, in.Provider, scope, charge.ExternalID); err != nil {
		log.Warn("idempotency key not linked to charge", zap.String("external_id", charge.ExternalID), zap.Error(err))
	}

	p, err := s.payments.Create(ctx, paymentrepo.NewPayment{
		OrderID:    o.ID,
		Provider:   in.Provider,
		ExternalID: charge.ExternalID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Details:    mergeDetails(nil, "charge", charge.Raw),
	})
	if err != nil {
		log.Error("charge created but payment not recorded", zap.String("external_id", charge.ExternalID), zap.Error(err))
		return nil, fmt.Errorf("record payment: %w", err)
	}
	log.Info("payment initiated", zap.String("payment_id", p.ID), zap.String("external_id", charge.ExternalID))
	return &PaymentResult{
		Success:     true,
		PaymentID:   p.ID,
		ExternalID:  charge.ExternalID,
		RedirectURL: charge.RedirectURL,
	}, nil
}

// HandleCallback applies a provider notification and reports whether it is
// done with. False means the delivery should be retried.
func (s *Service) HandleCallback(ctx context.Context, provider domain.PaymentProvider, body []byte, headers http.Header) bool {
	return s.Reconcile(ctx, provider, body, headers) == nil
}

// Reconcile is HandleCallback with the failure reason. Errors wrapping
// ErrCallbackRejected are permanent.
func (s *Service) Reconcile(ctx context.Context, provider domain.PaymentProvider, body []byte, headers http.Header) error {
	log := s.logger.With(zap.String("provider", string(provider)))

	adapter, err := s.adapters.Get(provider)
	if err != nil {
		log.Error("callback for unconfigured provider", zap.Error(err))
		return err
	}
	if !adapter.VerifyCallback(ctx, body, headers) {
		log.Warn("callback signature rejected")
		return fmt.Errorf("%s signature: %w", provider, ErrCallbackRejected)
	}
	cb, err := adapter.TranslateCallback(body)
	if err != nil {
		log.Error("callback not understood", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCallbackRejected, err)
	}
	log = log.With(zap.String("event", cb.EventType), zap.String("event_id", cb.EventID))
	if !cb.Handled {
		log.Debug("callback ignored")
		return nil
	}

	p, err := s.findPayment(ctx, provider, cb)
	if err != nil {
		log.Error("no payment for callback", zap.String("order_id", cb.OrderID), zap.String("external_id", cb.ExternalID), zap.Error(err))
		return err
	}
	log = log.With(zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID))

	upd := paymentrepo.StatusUpdate{Details: mergeDetails(p.Details, cb.EventType, body)}
	if cb.ProviderReference != "" {
		ref := cb.ProviderReference
		upd.ProviderReference = &ref
	}
	applied := true
	if _, err := s.transitionPayment(ctx, p, cb.Status, upd); err != nil {
		var ite *domain.InvalidTransitionError
		switch {
		case errors.Is(err, domain.ErrIdempotentNoOp):
			log.Info("callback already applied", zap.String("status", string(cb.Status)))
			applied = false
		case errors.As(err, &ite) && domain.PaymentStatus(ite.From).Supersedes(cb.Status):
			log.Info("stale callback acknowledged", zap.String("status", string(cb.Status)), zap.String("payment_status", ite.From))
			return nil
		default:
			log.Error("payment status not updated", zap.String("status", string(cb.Status)), zap.Error(err))
			return err
		}
	}

	current, err := s.isCurrentAttempt(ctx, p)
	if err != nil {
		log.Error("payment attempts not loaded", zap.Error(err))
		return err
	}
	// Only the order's latest attempt drives the order, and only it heals an
	// earlier failed order update on replay. A late capture of an older
	// attempt still marks the order paid.
	if !current && !(applied && cb.Status == domain.PaymentStatusCompleted) {
		log.Info("callback for superseded attempt, order left alone", zap.String("status", string(cb.Status)), zap.Bool("applied", applied))
		return nil
	}
	return s.cascade(ctx, p.OrderID, cb.Status, log)
}

// isCurrentAttempt reports whether p is the newest payment of its order.
func (s *Service) isCurrentAttempt(ctx context.Context, p *domain.Payment) (bool, error) {
	attempts, err := s.payments.ListByOrder(ctx, p.OrderID)
	if err != nil {
		return false, err
	}
	if len(attempts) == 0 {
		return false, nil
	}
	return attempts[len(attempts)-1].ID == p.ID, nil
}

// findPayment prefers the exact charge id, then the settlement reference,
// then the latest payment of the order.
func (s *Service) findPayment(ctx context.Context, provider domain.PaymentProvider, cb gateway.Callback) (*domain.Payment, error) {
	lookups := []struct {
		key  string
		find func() (*domain.Payment, error)
	}{
		{cb.ExternalID, func() (*domain.Payment, error) { return s.payments.GetByExternalID(ctx, provider, cb.ExternalID) }},
		{cb.ProviderReference, func() (*domain.Payment, error) { return s.payments.GetByReference(ctx, provider, cb.ProviderReference) }},
		{cb.OrderID, func() (*domain.Payment, error) { return s.payments.LatestForOrder(ctx, cb.OrderID, provider) }},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		p, err := l.find()
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("payment for %s event %s: %w", provider, cb.EventID, domain.ErrNotFound)
}

// transitionPayment returns domain.ErrIdempotentNoOp when the payment is
// already at "to", including when a concurrent delivery got there first.
func (s *Service) transitionPayment(ctx context.Context, p *domain.Payment, to domain.PaymentStatus, upd paymentrepo.StatusUpdate) (*domain.Payment, error) {
	if p.Status == to {
		return p, domain.ErrIdempotentNoOp
	}
	updated, err := s.payments.UpdateStatus(ctx, p.ID, to, domain.PaymentPreStates(to), upd)
	var ite *domain.InvalidTransitionError
	if errors.As(err, &ite) && ite.From == string(to) {
		return p, domain.ErrIdempotentNoOp
	}
	return updated, err
}

// cascade moves the order to the status implied by the payment status. An
// order that cannot take the edge (shipped, delivered, already there) is left
// alone.
func (s *Service) cascade(ctx context.Context, orderID string, status domain.PaymentStatus, log *zap.Logger) error {
	to, ok := domain.OrderStatusFor(status)
	if !ok {
		return nil
	}
	_, err := s.orders.Transition(ctx, orderID, to)
	var ite *domain.InvalidTransitionError
	switch {
	case err == nil:
		log.Info("order status reconciled", zap.String("order_status", string(to)))
		return nil
	case errors.As(err, &ite):
		if ite.From != string(to) {
			log.Warn("order not moved by payment status", zap.String("order_status", ite.From), zap.String("wanted", string(to)))
		}
		return nil
	default:
		log.Error("order status not reconciled", zap.String("order_status", string(to)), zap.Error(err))
		return err
	}
}

// Refund returns money for a completed payment. It is a shop admin action.
func (s *Service) Refund(ctx context.Context, in RefundInput) (*RefundResult, error) {
	p, err := s.payments.GetByID(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.Find(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.orders.RequireShopAdmin(ctx, o.ShopID, in.CallerID); err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusCompleted {
		return nil, &domain.InvalidTransitionError{Entity: "payment", ID: p.ID, From: string(p.Status), To: string(domain.PaymentStatusRefunded)}
	}
	label := "full"
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, domain.NewValidationError("amount", "must be positive")
		}
		if in.Amount.GreaterThan(p.Amount) {
			return nil, domain.NewValidationError("amount", "exceeds the payment amount "+p.Amount.String())
		}
		label = in.Amount.String()
	}
	adapter, err := s.adapters.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("provider", string(p.Provider)), zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID))

	scope := "refund:" + p.ID + ":" + label
	key, err := s.keys.GetOrCreate(ctx, p.Provider, scope, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("idempotency key: %w", err)
	}
	req := gateway.RefundRequest{
		OrderID:        p.OrderID,
		Amount:         in.Amount,
		PaymentAmount:  p.Amount,
		Currency:       p.Currency,
		IdempotencyKey: key.Value,
	}
	if p.ExternalID != nil {
		req.ExternalID = *p.ExternalID
	}
	if p.ProviderReference != nil {
		req.ProviderReference = *p.ProviderReference
	}
	refund, err := adapter.Refund(ctx, req)
	if err != nil {
		log.Warn("refund failed", zap.Error(err))
		return &RefundResult{Success: false, PaymentID: p.ID, Message: failureMessage(err)}, nil
	}
	if err := s.keys.RecordExternalID(ctx, p.Provider, scope, refund.RefundID); err != nil {
		log.Warn("idempotency key not linked to refund", zap.Error(err))
	}

	upd := paymentrepo.StatusUpdate{Details: mergeDetails(p.Details, "refund", refund.Raw)}
	if _, err := s.transitionPayment(ctx, p, domain.PaymentStatusRefunded, upd); err != nil && !errors.Is(err, domain.ErrIdempotentNoOp) {
		log.Error("refund issued but payment not updated", zap.String("refund_id", refund.RefundID), zap.Error(err))
		return nil, err
	}
	if err := s.cascade(ctx, p.OrderID, domain.PaymentStatusRefunded, log); err != nil {
		return nil, err
	}
	log.Info("payment refunded", zap.String("refund_id", refund.RefundID))
	return &RefundResult{Success: true, PaymentID: p.ID, RefundID: refund.RefundID, Status: refund.Status}, nil
}

// UpdateStatus is the shop admin override. It cascades to the order like a
// provider callback.
func (s *Service) UpdateStatus(ctx context.Context, callerID, paymentID string, to domain.PaymentStatus, details json.RawMessage) (*domain.Payment, error) {
	if to == domain.PaymentStatusPending || !to.Valid() {
		return nil, domain.NewValidationError("status", "must be completed, failed or refunded")
	}
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.Find(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.orders.RequireShopAdmin(ctx, o.ShopID, callerID); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("provider", string(p.Provider)), zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID), zap.String("admin_id", callerID))

	updated, err := s.transitionPayment(ctx, p, to, paymentrepo.StatusUpdate{Details: mergeDetails(p.Details, "admin", details)})
	if err != nil && !errors.Is(err, domain.ErrIdempotentNoOp) {
		return nil, err
	}
	if err := s.cascade(ctx, p.OrderID, to, log); err != nil {
		return nil, err
	}
	log.Info("payment status set by admin", zap.String("status", string(to)))
	return updated, nil
}

// Get returns the payment to the order's owner or a shop admin.
func (s *Service) Get(ctx context.Context, callerID, paymentID string) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOrder(ctx, callerID, p.OrderID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListForOrder(ctx context.Context, callerID, orderID string) ([]domain.Payment, error) {
	if err := s.authorizeOrder(ctx, callerID, orderID); err != nil {
		return nil, err
	}
	return s.payments.ListByOrder(ctx, orderID)
}

func (s *Service) authorizeOrder(ctx context.Context, callerID, orderID string) error {
	o, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID == callerID {
		return nil
	}
	return s.orders.RequireShopAdmin(ctx, o.ShopID, callerID)
}

func failureMessage(err error) string {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}

// mergeDetails adds value under key to the JSON object in existing. A value
// that is not JSON is stored as a string.
func mergeDetails(existing json.RawMessage, key string, value json.RawMessage) json.RawMessage {
	doc := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil || doc == nil {
			doc = map[string]json.RawMessage{"previous": existing}
		}
	}
	if len(value) == 0 {
		if len(doc) == 0 {
			return nil
		}
	} else {
		if !json.Valid(value) {
			value, _ = json.Marshal(string(value))
		}
		doc[key] = value
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return existing
	}
	return out
}
