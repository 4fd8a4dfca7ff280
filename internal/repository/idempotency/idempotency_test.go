package idempotency

import (
	"context"
	"errors"
	"testing"

	"shopcore/internal/dbtest"
	"shopcore/internal/domain"
)

func TestPostgres_GetOrCreateReusesFirstKey(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t))

	first, err := repo.GetOrCreate(ctx, domain.ProviderYooKassa, "charge:o1:0", "key-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := repo.GetOrCreate(ctx, domain.ProviderYooKassa, "charge:o1:0", "key-2")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if first.Value != "key-1" || second.Value != "key-1" {
		t.Fatalf("expected key-1 twice, got %s and %s", first.Value, second.Value)
	}

	other, err := repo.GetOrCreate(ctx, domain.ProviderStripe, "charge:o1:0", "key-3")
	if err != nil || other.Value != "key-3" {
		t.Fatalf("scopes are per provider: %v %+v", err, other)
	}

	if err := repo.RecordExternalID(ctx, domain.ProviderYooKassa, "charge:o1:0", "yk-1"); err != nil {
		t.Fatalf("RecordExternalID: %v", err)
	}
	again, _ := repo.GetOrCreate(ctx, domain.ProviderYooKassa, "charge:o1:0", "key-4")
	if again.ExternalID != "yk-1" {
		t.Fatalf("expected recorded external id, got %q", again.ExternalID)
	}

	if err := repo.RecordExternalID(ctx, domain.ProviderPayPal, "missing", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
