package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcore/internal/auth"
	"shopcore/internal/config"
	"shopcore/internal/domain"
	webhookrepo "shopcore/internal/repository/webhook"
)

type memDead struct {
	tasks    []webhookrepo.Task
	requeued []string
}

func (m *memDead) ListDead(_ context.Context, limit int) ([]webhookrepo.Task, error) {
	if limit < len(m.tasks) {
		return m.tasks[:limit], nil
	}
	return m.tasks, nil
}

func (m *memDead) Requeue(_ context.Context, id string) error {
	if id == "missing" {
		return domain.ErrNotFound
	}
	m.requeued = append(m.requeued, id)
	return nil
}

type memProviders struct {
	enabled map[domain.PaymentProvider]bool
}

func (m *memProviders) SetProviderEnabled(_ context.Context, _ string, p domain.PaymentProvider, enabled bool) error {
	m.enabled[p] = enabled
	return nil
}

func (m *memProviders) ListProviders(_ context.Context, shopID string) ([]domain.ShopProvider, error) {
	var out []domain.ShopProvider
	for p, on := range m.enabled {
		out = append(out, domain.ShopProvider{ShopID: shopID, Provider: p, Enabled: on})
	}
	return out, nil
}

func run(t *testing.T, s *stores, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	closed := false
	open := func(context.Context) (*stores, func(), error) {
		if s == nil {
			return nil, nil, errors.New("no database")
		}
		return s, func() { closed = true }, nil
	}
	root := newRootCmd(cfg, open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	if s != nil && err == nil && !closed && args[0] != "token" {
		t.Fatalf("expected database handle to be closed")
	}
	return out.String(), err
}

func TestDeadLetters_ListAndReplay(t *testing.T) {
	dead := &memDead{tasks: []webhookrepo.Task{
		{ID: "t1", Provider: domain.ProviderStripe, Attempts: 8, LastError: strings.Repeat("e", 200), UpdatedAt: time.Unix(0, 0)},
		{ID: "t2", Provider: domain.ProviderPayPal, Attempts: 8, LastError: "order not found"},
	}}
	s := &stores{webhooks: dead}

	out, err := run(t, s, config.Config{}, "deadletters", "list", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "t1")
	assert.NotContains(t, out, "t2")
	assert.Contains(t, out, "...")

	out, err = run(t, s, config.Config{}, "deadletters", "replay", "t1", "t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, dead.requeued)
	assert.Contains(t, out, "requeued t2")

	_, err = run(t, s, config.Config{}, "deadletters", "replay", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeadLetters_Empty(t *testing.T) {
	out, err := run(t, &stores{webhooks: &memDead{}}, config.Config{}, "deadletters", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no dead letters")
}

func TestProviders_Switch(t *testing.T) {
	shops := &memProviders{enabled: map[domain.PaymentProvider]bool{}}
	s := &stores{shops: shops}

	_, err := run(t, s, config.Config{}, "providers", "enable", "shop-1", "yookassa")
	require.NoError(t, err)
	assert.True(t, shops.enabled[domain.ProviderYooKassa])

	out, err := run(t, s, config.Config{}, "providers", "list", "shop-1")
	require.NoError(t, err)
	assert.Contains(t, out, "yookassa   enabled")
	assert.Contains(t, out, "stripe     disabled")

	_, err = run(t, s, config.Config{}, "providers", "disable", "shop-1", "bitcoin")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMigrateStatus(t *testing.T) {
	s := &stores{schemaVersion: func(context.Context) (uint, bool, error) { return 1, false, nil }}
	out, err := run(t, s, config.Config{}, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "version 1 (clean)")

	_, err = run(t, nil, config.Config{}, "migrate", "status")
	assert.ErrorContains(t, err, "open database")
}

func TestTokenIssue(t *testing.T) {
	cfg := config.Config{JWTSecret: "s3cret"}
	out, err := run(t, nil, cfg, "token", "issue", "user-9", "--ttl", "1h")
	require.NoError(t, err)

	v, err := auth.NewTokenVerifier("s3cret")
	require.NoError(t, err)
	sub, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-9", sub)

	_, err = run(t, nil, config.Config{}, "token", "issue", "user-9")
	assert.Error(t, err)
}
