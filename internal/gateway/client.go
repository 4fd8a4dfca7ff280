package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shopcore/internal/domain"
	"shopcore/internal/logging"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Options configures the HTTP transport shared by the adapters.
type Options struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 200 * time.Millisecond
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

type client struct {
	provider domain.PaymentProvider
	hc       *http.Client
	opts     Options
	logger   *zap.Logger
}

func newClient(provider domain.PaymentProvider, opts Options) *client {
	opts = opts.withDefaults()
	return &client{
		provider: provider,
		hc:       opts.HTTPClient,
		opts:     opts,
		logger:   opts.Logger.With(zap.String("provider", string(provider))),
	}
}

// do sends the request built by newReq and returns the response body of a
// 2xx answer. Transport errors, 429 and 5xx are retried with exponential
// backoff; other 4xx responses fail at once with a rejected ProviderError.
func (c *client) do(ctx context.Context, op string, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)

	var body []byte
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		req, err := newReq(attemptCtx)
		if err != nil {
			var perr *domain.ProviderError
			if errors.As(err, &perr) {
				if perr.Temporary {
					return err
				}
				return backoff.Permanent(err)
			}
			return backoff.Permanent(fmt.Errorf("%s: build request: %w", op, err))
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(&domain.ProviderError{Provider: c.provider, Message: ctx.Err().Error(), Temporary: true})
			}
			return &domain.ProviderError{Provider: c.provider, Message: err.Error(), Temporary: true}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return &domain.ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Temporary: true}
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &domain.ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Message: providerMessage(data), Temporary: true}
		case resp.StatusCode >= 400:
			return backoff.Permanent(&domain.ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Message: providerMessage(data)})
		}
		body = data
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("provider call failed, retrying", zap.String("op", op), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var perr *domain.ProviderError
		if !errors.As(err, &perr) && ctx.Err() != nil {
			return nil, &domain.ProviderError{Provider: c.provider, Message: ctx.Err().Error(), Temporary: true}
		}
		c.logger.Error("provider call failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return body, nil
}

// doJSON is do followed by decoding the body into out.
func (c *client) doJSON(ctx context.Context, op string, newReq func(ctx context.Context) (*http.Request, error), out any) ([]byte, error) {
	body, err := c.do(ctx, op, newReq)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, &domain.ProviderError{Provider: c.provider, Message: op + ": decode response: " + err.Error()}
		}
	}
	return body, nil
}

// providerMessage extracts the human readable message from the error
// envelopes used by the supported providers.
func providerMessage(body []byte) string {
	var envelope struct {
		Error       json.RawMessage `json:"error"`
		Message     string          `json:"message"`
		Description string          `json:"description"`
		ErrorDesc   string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		for _, m := range []string{envelope.Message, envelope.Description, envelope.ErrorDesc} {
			if m != "" {
				return m
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}
