package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shopcore/internal/domain"

	"go.uber.org/zap"
)

const stripeSignatureHeader = "Stripe-Signature"

// stripeTolerance bounds how far a signed timestamp may be from now.
const stripeTolerance = 5 * time.Minute

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

// Stripe creates hosted checkout sessions over the form-encoded REST API.
type Stripe struct {
	cfg    StripeConfig
	client *client
	logger *zap.Logger
	now    func() time.Time
}

func NewStripe(cfg StripeConfig, opts Options) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := newClient(domain.ProviderStripe, opts)
	return &Stripe{cfg: cfg, client: c, logger: c.logger, now: time.Now}
}

func (s *Stripe) Provider() domain.PaymentProvider { return domain.ProviderStripe }

func (s *Stripe) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.ReturnURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.OrderID)
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("metadata[order_number]", req.OrderNumber)
	form.Set("payment_intent_data[metadata][order_id]", req.OrderID)
	form.Set("payment_intent_data[metadata][order_number]", req.OrderNumber)

	currency := strings.ToLower(req.Currency)
	items := req.Lines
	if req.Shipping.IsPositive() {
		items = append(append([]LineItem(nil), items...), LineItem{Name: "Shipping", Quantity: 1, UnitPrice: req.Shipping})
	}
	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(domain.ToMinorUnits(item.UnitPrice, req.Currency), 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	raw, err := s.client.doJSON(ctx, "create checkout session", s.formRequest("/v1/checkout/sessions", form, req.IdempotencyKey), &session)
	if err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, &domain.ProviderError{Provider: domain.ProviderStripe, Message: "checkout session without id"}
	}
	return &Charge{ExternalID: session.ID, RedirectURL: session.URL, Raw: raw}, nil
}

// VerifyCallback checks the HMAC-SHA256 signature of the raw body. The
// header may carry the bare hex digest of the body, or the Stripe scheme
// "t=<ts>,v1=<sig>" signing "<ts>.<body>".
func (s *Stripe) VerifyCallback(_ context.Context, body []byte, headers http.Header) bool {
	if s.cfg.WebhookSecret == "" {
		s.logger.Warn("webhook secret not configured, rejecting callback")
		return false
	}
	header := strings.TrimSpace(headers.Get(stripeSignatureHeader))
	if header == "" {
		return false
	}
	if !strings.Contains(header, "=") {
		return equalHex(hmacSHA256Hex(s.cfg.WebhookSecret, body), header)
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	signedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if skew := s.now().Sub(time.Unix(signedAt, 0)); skew > stripeTolerance || skew < -stripeTolerance {
		s.logger.Warn("stripe signature outside tolerance", zap.Duration("skew", skew))
		return false
	}
	expected := hmacSHA256Hex(s.cfg.WebhookSecret, []byte(timestamp), []byte("."), body)
	for _, sig := range signatures {
		if equalHex(expected, sig) {
			return true
		}
	}
	return false
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			Object        string            `json:"object"`
			PaymentStatus string            `json:"payment_status"`
			PaymentIntent json.RawMessage   `json:"payment_intent"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (s *Stripe) TranslateCallback(body []byte) (Callback, error) {
	var evt stripeEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return Callback{}, fmt.Errorf("stripe: decode event: %w", err)
	}
	obj := evt.Data.Object
	cb := Callback{
		EventID:           evt.ID,
		EventType:         evt.Type,
		OrderID:           obj.Metadata["order_id"],
		ProviderReference: objectID(obj.PaymentIntent),
	}
	switch evt.Type {
	case "checkout.session.completed":
		if obj.PaymentStatus != "paid" {
			// Delayed payment methods settle later with async_payment_succeeded.
			return cb, nil
		}
		cb.Handled, cb.Status, cb.ExternalID = true, domain.PaymentStatusCompleted, obj.ID
	case "checkout.session.async_payment_succeeded":
		cb.Handled, cb.Status, cb.ExternalID = true, domain.PaymentStatusCompleted, obj.ID
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		cb.Handled, cb.Status, cb.ExternalID = true, domain.PaymentStatusFailed, obj.ID
	case "charge.refunded":
		cb.Handled, cb.Status = true, domain.PaymentStatusRefunded
	default:
		return cb, nil
	}
	if cb.OrderID == "" && cb.ExternalID == "" && cb.ProviderReference == "" {
		return cb, fmt.Errorf("stripe: event %s carries no order reference", evt.ID)
	}
	return cb, nil
}

func (s *Stripe) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	target := req.ProviderReference
	if target == "" {
		return nil, &domain.ProviderError{Provider: domain.ProviderStripe, Message: "no payment intent recorded for checkout session " + req.ExternalID}
	}
	form := url.Values{}
	form.Set("payment_intent", target)
	form.Set("metadata[order_id]", req.OrderID)
	if req.Amount != nil {
		form.Set("amount", strconv.FormatInt(domain.ToMinorUnits(*req.Amount, req.Currency), 10))
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	raw, err := s.client.doJSON(ctx, "create refund", s.formRequest("/v1/refunds", form, req.IdempotencyKey), &refund)
	if err != nil {
		return nil, err
	}
	return &Refund{RefundID: refund.ID, Status: refund.Status, Raw: raw}, nil
}

func (s *Stripe) formRequest(path string, form url.Values, idempotencyKey string) func(context.Context) (*http.Request, error) {
	encoded := form.Encode()
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}
		return req, nil
	}
}

// objectID reads a Stripe reference that is either an id string or an
// expanded object with an "id" field.
func objectID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
