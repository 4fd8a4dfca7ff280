package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("STRIPE_SECRET_KEY", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 3, cfg.Gateway.MaxRetries)
	assert.False(t, cfg.Stripe.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "3")
	t.Setenv("GATEWAY_TIMEOUT_SECONDS", "4")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("FRONTEND_URL", "https://shop.example/")
	t.Setenv("PAYPAL_CLIENT_ID", "id")
	t.Setenv("PAYPAL_CLIENT_SECRET", "secret")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.Webhooks.MaxAttempts)
	assert.Equal(t, 4*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://shop.example", cfg.FrontendURL)
	assert.True(t, cfg.PayPal.Enabled())
}

func TestFromEnv_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SHOP_TEST_DOTENV_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Cleanup(func() { os.Unsetenv("SHOP_TEST_DOTENV_KEY") })

	FromEnv()
	assert.Equal(t, "from-file", os.Getenv("SHOP_TEST_DOTENV_KEY"))
}
