package product

import (
	"context"
	"errors"
	"testing"

	"shopcore/internal/dbtest"
	"shopcore/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPostgres_GetAndList(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 2)

	repo := NewPostgres(pool, nil)

	got, err := repo.GetByID(ctx, fx.ProductIDs[0])
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ShopID != fx.ShopID || !got.Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected product %+v", got)
	}

	list, err := repo.ListByIDs(ctx, []string{fx.ProductIDs[1], uuid.NewString()})
	if err != nil {
		t.Fatalf("ListByIDs: %v", err)
	}
	if len(list) != 1 || list[0].ID != fx.ProductIDs[1] {
		t.Fatalf("expected only the existing product, got %+v", list)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_Upsert(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 0)

	repo := NewPostgres(pool, nil)
	discount := decimal.RequireFromString("7.50")
	in := domain.Product{ShopID: fx.ShopID, Name: "Mug", Price: decimal.RequireFromString("9.99"), DiscountPrice: &discount, Stock: 3, IsAvailable: true}

	first, err := repo.Upsert(ctx, in, "SKU-MUG")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	in.Stock = 10
	second, err := repo.Upsert(ctx, in, "SKU-MUG")
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if first.ID != second.ID || second.Stock != 10 {
		t.Fatalf("expected update in place, got %+v then %+v", first, second)
	}
	if !second.EffectivePrice().Equal(discount) {
		t.Fatalf("expected discount price, got %s", second.EffectivePrice())
	}
}
