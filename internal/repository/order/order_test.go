package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shopcore/internal/dbtest"
	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
)

func newOrder(fx dbtest.Fixture, number string) NewOrder {
	return NewOrder{
		UserID:       "user-1",
		ShopID:       fx.ShopID,
		OrderNumber:  number,
		Currency:     "USD",
		ShippingCost: decimal.RequireFromString("4.50"),
		Lines: []domain.OrderLine{
			{ProductID: fx.ProductIDs[0], ProductName: "Product 1", Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
			{ProductID: fx.ProductIDs[1], ProductName: "Product 2", Quantity: 1, UnitPrice: decimal.RequireFromString("0.20")},
		},
	}
}

func TestPostgres_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 2)
	repo := NewPostgres(pool, nil)

	created, err := repo.Create(ctx, newOrder(fx, "ORD-AAAA0001"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}
	if !created.TotalAmount.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("expected total 0.50, got %s", created.TotalAmount)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Lines) != 2 || got.Lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines %+v", got.Lines)
	}
	if !domain.LinesTotal(got.Lines).Equal(got.TotalAmount) {
		t.Fatalf("line total %s does not match order total %s", domain.LinesTotal(got.Lines), got.TotalAmount)
	}

	if _, err := repo.Create(ctx, newOrder(fx, "ORD-AAAA0001")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on duplicate number, got %v", err)
	}
}

func TestPostgres_UpdateStatusConditional(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 2)
	repo := NewPostgres(pool, nil)

	created, err := repo.Create(ctx, newOrder(fx, "ORD-BBBB0001"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Concurrent PENDING -> PAID writers: exactly one wins.
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateStatus(ctx, created.ID, domain.OrderStatusPaid, []domain.OrderStatus{domain.OrderStatusPending})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	_, err = repo.UpdateStatus(ctx, created.ID, domain.OrderStatusShipped, []domain.OrderStatus{domain.OrderStatusProcessing})
	var ite *domain.InvalidTransitionError
	if !errors.As(err, &ite) || ite.From != string(domain.OrderStatusPaid) {
		t.Fatalf("expected invalid transition from paid, got %v", err)
	}

	_, err = repo.UpdateStatus(ctx, "00000000-0000-0000-0000-000000000000", domain.OrderStatusPaid, []domain.OrderStatus{domain.OrderStatusPending})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_ListByShopFiltersStatus(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 2)
	repo := NewPostgres(pool, nil)

	first, err := repo.Create(ctx, newOrder(fx, "ORD-CCCC0001"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Create(ctx, newOrder(fx, "ORD-CCCC0002")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, first.ID, domain.OrderStatusCancelled, []domain.OrderStatus{domain.OrderStatusPending}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cancelled := domain.OrderStatusCancelled
	list, err := repo.ListByShop(ctx, fx.ShopID, ListFilter{Status: &cancelled})
	if err != nil {
		t.Fatalf("ListByShop: %v", err)
	}
	if len(list) != 1 || list[0].ID != first.ID || len(list[0].Lines) != 2 {
		t.Fatalf("unexpected filtered list %+v", list)
	}

	all, err := repo.ListByUser(ctx, "user-1", ListFilter{})
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
}
