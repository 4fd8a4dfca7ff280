package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"shopcore/internal/domain"

	"go.uber.org/zap"
)

const yookassaSignatureHeader = "X-Yookassa-Signature"

type YooKassaConfig struct {
	ShopID    string
	SecretKey string
	// WebhookSecret enables HMAC verification of callbacks. YooKassa does not
	// sign notifications itself, so without it every callback is trusted.
	WebhookSecret string
	BaseURL       string
}

// YooKassa creates redirect payments over the v3 API with basic auth.
type YooKassa struct {
	cfg    YooKassaConfig
	client *client
	logger *zap.Logger
}

func NewYooKassa(cfg YooKassaConfig, opts Options) *YooKassa {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.yookassa.ru"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := newClient(domain.ProviderYooKassa, opts)
	return &YooKassa{cfg: cfg, client: c, logger: c.logger}
}

func (y *YooKassa) Provider() domain.PaymentProvider { return domain.ProviderYooKassa }

type yookassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yookassaReceiptItem struct {
	Description string         `json:"description"`
	Quantity    int            `json:"quantity"`
	Amount      yookassaAmount `json:"amount"`
	VatCode     int            `json:"vat_code"`
}

// yookassaNoVAT is the receipt VAT code for goods without VAT.
const yookassaNoVAT = 1

// receiptItems lists the order lines and shipping with per-unit amounts.
func receiptItems(req ChargeRequest) []yookassaReceiptItem {
	currency := strings.ToUpper(req.Currency)
	items := make([]yookassaReceiptItem, 0, len(req.Lines)+1)
	for _, l := range req.Lines {
		items = append(items, yookassaReceiptItem{
			Description: l.Name,
			Quantity:    l.Quantity,
			Amount:      yookassaAmount{Value: domain.FormatAmount(l.UnitPrice, req.Currency), Currency: currency},
			VatCode:     yookassaNoVAT,
		})
	}
	if req.Shipping.IsPositive() {
		items = append(items, yookassaReceiptItem{
			Description: "Shipping",
			Quantity:    1,
			Amount:      yookassaAmount{Value: domain.FormatAmount(req.Shipping, req.Currency), Currency: currency},
			VatCode:     yookassaNoVAT,
		})
	}
	return items
}

func (y *YooKassa) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := map[string]any{
		"receipt": map[string]any{"items": receiptItems(req)},
		"amount":  yookassaAmount{Value: domain.FormatAmount(req.Amount, req.Currency), Currency: strings.ToUpper(req.Currency)},
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		"description": "Order " + req.OrderNumber,
		"metadata": map[string]string{
			"order_id":     req.OrderID,
			"order_number": req.OrderNumber,
		},
	}

	var payment struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		Confirmation struct {
			ConfirmationURL string `json:"confirmation_url"`
		} `json:"confirmation"`
	}
	raw, err := y.client.doJSON(ctx, "create payment", y.jsonRequest("/v3/payments", body, req.IdempotencyKey), &payment)
	if err != nil {
		return nil, err
	}
	if payment.ID == "" {
		return nil, &domain.ProviderError{Provider: domain.ProviderYooKassa, Message: "payment response without id"}
	}
	return &Charge{ExternalID: payment.ID, RedirectURL: payment.Confirmation.ConfirmationURL, Raw: raw}, nil
}

// VerifyCallback checks an HMAC-SHA256 of the body when a webhook secret is
// configured. Otherwise the callback is accepted and a warning is logged;
// such deployments must restrict the webhook route to YooKassa's IP ranges.
func (y *YooKassa) VerifyCallback(_ context.Context, body []byte, headers http.Header) bool {
	if y.cfg.WebhookSecret == "" {
		y.logger.Warn("accepting unsigned callback, no webhook secret configured")
		return json.Valid(body)
	}
	sig := headers.Get(yookassaSignatureHeader)
	if sig == "" {
		return false
	}
	return equalHex(hmacSHA256Hex(y.cfg.WebhookSecret, body), sig)
}

type yookassaEvent struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID        string            `json:"id"`
		Status    string            `json:"status"`
		PaymentID string            `json:"payment_id"`
		Metadata  map[string]string `json:"metadata"`
	} `json:"object"`
}

func (y *YooKassa) TranslateCallback(body []byte) (Callback, error) {
	var evt yookassaEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return Callback{}, fmt.Errorf("yookassa: decode event: %w", err)
	}
	obj := evt.Object
	cb := Callback{
		EventID:   evt.Event + ":" + obj.ID,
		EventType: evt.Event,
		OrderID:   obj.Metadata["order_id"],
	}
	switch evt.Event {
	case "payment.succeeded":
		cb.Handled, cb.Status, cb.ExternalID = true, domain.PaymentStatusCompleted, obj.ID
	case "payment.canceled":
		cb.Handled, cb.Status, cb.ExternalID = true, domain.PaymentStatusFailed, obj.ID
	case "refund.succeeded":
		cb.Handled, cb.Status, cb.ExternalID = true, domain.PaymentStatusRefunded, obj.PaymentID
	default:
		return cb, nil
	}
	if cb.OrderID == "" && cb.ExternalID == "" {
		return cb, fmt.Errorf("yookassa: event %s carries no order reference", cb.EventID)
	}
	return cb, nil
}

func (y *YooKassa) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	amount := req.PaymentAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	body := map[string]any{
		"payment_id": req.ExternalID,
		"amount":     yookassaAmount{Value: domain.FormatAmount(amount, req.Currency), Currency: strings.ToUpper(req.Currency)},
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	raw, err := y.client.doJSON(ctx, "create refund", y.jsonRequest("/v3/refunds", body, req.IdempotencyKey), &refund)
	if err != nil {
		return nil, err
	}
	return &Refund{RefundID: refund.ID, Status: refund.Status, Raw: raw}, nil
}

func (y *YooKassa) jsonRequest(path string, payload any, idempotencyKey string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.cfg.BaseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(y.cfg.ShopID, y.cfg.SecretKey)
		req.Header.Set("Content-Type", "application/json")
		if idempotencyKey != "" {
			req.Header.Set("Idempotence-Key", idempotencyKey)
		}
		return req, nil
	}
}
