package gateway

import (
	"shopcore/internal/config"

	"go.uber.org/zap"
)

// FromConfig registers an adapter for every provider with credentials.
func FromConfig(cfg config.Config, logger *zap.Logger) *Registry {
	opts := Options{
		Timeout:    cfg.Gateway.Timeout,
		MaxRetries: cfg.Gateway.MaxRetries,
		Logger:     logger,
	}

	var adapters []Adapter
	if cfg.Stripe.Enabled() {
		adapters = append(adapters, NewStripe(StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			BaseURL:       cfg.Stripe.BaseURL,
		}, opts))
	}
	if cfg.PayPal.Enabled() {
		adapters = append(adapters, NewPayPal(PayPalConfig{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			WebhookID:    cfg.PayPal.WebhookID,
			BaseURL:      cfg.PayPal.BaseURL,
		}, opts))
	}
	if cfg.YooKassa.Enabled() {
		adapters = append(adapters, NewYooKassa(YooKassaConfig{
			ShopID:        cfg.YooKassa.ShopID,
			SecretKey:     cfg.YooKassa.SecretKey,
			WebhookSecret: cfg.YooKassa.WebhookSecret,
			BaseURL:       cfg.YooKassa.BaseURL,
		}, opts))
	}

	r := NewRegistry(adapters...)
	if logger != nil {
		names := make([]string, 0, len(adapters))
		for _, p := range r.Providers() {
			names = append(names, string(p))
		}
		logger.Info("payment providers configured", zap.Strings("providers", names))
	}
	return r
}
