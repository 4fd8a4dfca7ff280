package cart

import (
	"context"
	"errors"
	"testing"

	"shopcore/internal/dbtest"
	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
)

func TestPostgres_AddOrIncrementKeepsFirstPrice(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 1)
	repo := NewPostgres(pool, nil)

	if _, err := repo.AddOrIncrement(ctx, "user-1", fx.ProductIDs[0], 2, decimal.RequireFromString("10.00")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	line, err := repo.AddOrIncrement(ctx, "user-1", fx.ProductIDs[0], 3, decimal.RequireFromString("12.00"))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if line.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", line.Quantity)
	}
	if !line.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected first price to win, got %s", line.UnitPrice)
	}

	lines, err := repo.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected a single merged line, got %d", len(lines))
	}
}

func TestPostgres_MaterializeAndClear(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 2)
	repo := NewPostgres(pool, nil)

	for _, id := range fx.ProductIDs {
		if _, err := repo.AddOrIncrement(ctx, "user-1", id, 1, decimal.NewFromInt(5)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, err := repo.AddOrIncrement(ctx, "user-2", fx.ProductIDs[0], 1, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("add other user: %v", err)
	}

	cleared, err := repo.MaterializeAndClear(ctx, "user-1")
	if err != nil {
		t.Fatalf("MaterializeAndClear: %v", err)
	}
	if len(cleared) != 2 {
		t.Fatalf("expected 2 cleared lines, got %d", len(cleared))
	}
	remaining, _ := repo.List(ctx, "user-1")
	if len(remaining) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(remaining))
	}
	other, _ := repo.List(ctx, "user-2")
	if len(other) != 1 {
		t.Fatalf("other user's cart must be untouched, got %d lines", len(other))
	}
}

func TestPostgres_RemoveMissingLine(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	err := repo.RemoveLine(context.Background(), "user-1", "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
