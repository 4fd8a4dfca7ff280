package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	BaseURL      string
}

// PayPal creates Orders v2 checkouts authorised with client credentials.
type PayPal struct {
	cfg    PayPalConfig
	client *client
	tokens oauth2.TokenSource
	logger *zap.Logger
}

func NewPayPal(cfg PayPalConfig, opts Options) *PayPal {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-m.sandbox.paypal.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := newClient(domain.ProviderPayPal, opts)

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.hc)
	return &PayPal{
		cfg:    cfg,
		client: c,
		tokens: oauth2.ReuseTokenSource(nil, cc.TokenSource(tokenCtx)),
		logger: c.logger,
	}
}

func (p *PayPal) Provider() domain.PaymentProvider { return domain.ProviderPayPal }

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalItem struct {
	Name       string      `json:"name"`
	Quantity   string      `json:"quantity"`
	UnitAmount paypalMoney `json:"unit_amount"`
}

type paypalAmount struct {
	paypalMoney
	Breakdown struct {
		ItemTotal paypalMoney  `json:"item_total"`
		Shipping  *paypalMoney `json:"shipping,omitempty"`
	} `json:"breakdown"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	CustomID    string       `json:"custom_id"`
	InvoiceID   string       `json:"invoice_id"`
	Amount      paypalAmount `json:"amount"`
	Items       []paypalItem `json:"items"`
}

type paypalOrderRequest struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext struct {
		ReturnURL  string `json:"return_url"`
		CancelURL  string `json:"cancel_url"`
		UserAction string `json:"user_action"`
	} `json:"application_context"`
}

func (p *PayPal) money(amount decimal.Decimal, currency string) paypalMoney {
	return paypalMoney{CurrencyCode: strings.ToUpper(currency), Value: amount.StringFixed(domain.CurrencyExponent(currency))}
}

func (p *PayPal) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	var body paypalOrderRequest
	body.Intent = "CAPTURE"
	body.PurchaseUnits = make([]paypalPurchaseUnit, 1)
	unit := &body.PurchaseUnits[0]
	unit.ReferenceID = req.OrderNumber
	unit.CustomID = req.OrderID
	unit.InvoiceID = req.OrderNumber
	unit.Amount.paypalMoney = p.money(req.Amount, req.Currency)
	unit.Amount.Breakdown.ItemTotal = p.money(req.ItemsTotal, req.Currency)
	if req.Shipping.IsPositive() {
		shipping := p.money(req.Shipping, req.Currency)
		unit.Amount.Breakdown.Shipping = &shipping
	}
	for _, item := range req.Lines {
		unit.Items = append(unit.Items, paypalItem{
			Name:       item.Name,
			Quantity:   strconv.Itoa(item.Quantity),
			UnitAmount: p.money(item.UnitPrice, req.Currency),
		})
	}
	body.ApplicationContext.ReturnURL = req.ReturnURL
	body.ApplicationContext.CancelURL = req.CancelURL
	body.ApplicationContext.UserAction = "PAY_NOW"

	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	raw, err := p.client.doJSON(ctx, "create order", p.jsonRequest(http.MethodPost, "/v2/checkout/orders", body, req.IdempotencyKey), &order)
	if err != nil {
		return nil, err
	}
	charge := &Charge{ExternalID: order.ID, Raw: raw}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			charge.RedirectURL = link.Href
			break
		}
	}
	if charge.ExternalID == "" || charge.RedirectURL == "" {
		return nil, &domain.ProviderError{Provider: domain.ProviderPayPal, Message: "order response without id or approval link"}
	}
	return charge, nil
}

var paypalSignatureHeaders = []string{
	"Paypal-Auth-Algo",
	"Paypal-Cert-Url",
	"Paypal-Transmission-Id",
	"Paypal-Transmission-Sig",
	"Paypal-Transmission-Time",
}

// VerifyCallback asks PayPal to validate the transmission signature.
func (p *PayPal) VerifyCallback(ctx context.Context, body []byte, headers http.Header) bool {
	if p.cfg.WebhookID == "" {
		p.logger.Warn("webhook id not configured, rejecting callback")
		return false
	}
	values := make([]string, len(paypalSignatureHeaders))
	for i, h := range paypalSignatureHeaders {
		values[i] = headers.Get(h)
		if values[i] == "" {
			return false
		}
	}
	if !json.Valid(body) {
		return false
	}
	req := struct {
		AuthAlgo         string          `json:"auth_algo"`
		CertURL          string          `json:"cert_url"`
		TransmissionID   string          `json:"transmission_id"`
		TransmissionSig  string          `json:"transmission_sig"`
		TransmissionTime string          `json:"transmission_time"`
		WebhookID        string          `json:"webhook_id"`
		WebhookEvent     json.RawMessage `json:"webhook_event"`
	}{values[0], values[1], values[2], values[3], values[4], p.cfg.WebhookID, body}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if _, err := p.client.doJSON(ctx, "verify webhook signature", p.jsonRequest(http.MethodPost, "/v1/notifications/verify-webhook-signature", req, ""), &resp); err != nil {
		p.logger.Warn("signature verification call failed", zap.Error(err))
		return false
	}
	return resp.VerificationStatus == "SUCCESS"
}

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		CustomID          string `json:"custom_id"`
		Status            string `json:"status"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID   string `json:"order_id"`
				CaptureID string `json:"capture_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (p *PayPal) TranslateCallback(body []byte) (Callback, error) {
	var evt paypalEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return Callback{}, fmt.Errorf("paypal: decode event: %w", err)
	}
	res := evt.Resource
	cb := Callback{
		EventID:    evt.ID,
		EventType:  evt.EventType,
		OrderID:    res.CustomID,
		ExternalID: res.SupplementaryData.RelatedIDs.OrderID,
	}
	switch evt.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		cb.Handled, cb.Status, cb.ProviderReference = true, domain.PaymentStatusCompleted, res.ID
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		cb.Handled, cb.Status, cb.ProviderReference = true, domain.PaymentStatusFailed, res.ID
	case "PAYMENT.CAPTURE.REFUNDED":
		cb.Handled, cb.Status = true, domain.PaymentStatusRefunded
		cb.ProviderReference = res.SupplementaryData.RelatedIDs.CaptureID
	default:
		return cb, nil
	}
	if cb.OrderID == "" && cb.ExternalID == "" && cb.ProviderReference == "" {
		return cb, fmt.Errorf("paypal: event %s carries no order reference", evt.ID)
	}
	return cb, nil
}

// Refund refunds a capture. PayPal refunds captures, not orders, so the
// capture id recorded on completion is required.
func (p *PayPal) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if req.ProviderReference == "" {
		return nil, &domain.ProviderError{Provider: domain.ProviderPayPal, Message: "no capture recorded for order " + req.ExternalID}
	}
	body := map[string]any{}
	if req.Amount != nil {
		body["amount"] = p.money(*req.Amount, req.Currency)
	}
	if req.OrderID != "" {
		body["custom_id"] = req.OrderID
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := "/v2/payments/captures/" + req.ProviderReference + "/refund"
	raw, err := p.client.doJSON(ctx, "refund capture", p.jsonRequest(http.MethodPost, path, body, req.IdempotencyKey), &refund)
	if err != nil {
		return nil, err
	}
	return &Refund{RefundID: refund.ID, Status: refund.Status, Raw: raw}, nil
}

func (p *PayPal) jsonRequest(method, path string, payload any, requestID string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		token, err := p.tokens.Token()
		if err != nil {
			return nil, p.tokenError(err)
		}
		req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		token.SetAuthHeader(req)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
		if requestID != "" {
			req.Header.Set("PayPal-Request-Id", requestID)
		}
		return req, nil
	}
}

func (p *PayPal) tokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
		return &domain.ProviderError{Provider: domain.ProviderPayPal, StatusCode: rerr.Response.StatusCode, Message: "access token: " + providerMessage(rerr.Body)}
	}
	return &domain.ProviderError{Provider: domain.ProviderPayPal, Message: "access token: " + err.Error(), Temporary: true}
}
