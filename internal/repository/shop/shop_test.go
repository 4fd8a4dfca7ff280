package shop

import (
	"context"
	"testing"

	"shopcore/internal/dbtest"
	"shopcore/internal/domain"
)

func TestPostgres_AdminsAndProviders(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	fx := dbtest.Seed(t, pool, "owner-1", 0)
	repo := NewPostgres(pool, nil)

	for _, tc := range []struct {
		user string
		want bool
	}{{"owner-1", true}, {"helper", false}} {
		got, err := repo.IsAdmin(ctx, fx.ShopID, tc.user)
		if err != nil {
			t.Fatalf("IsAdmin: %v", err)
		}
		if got != tc.want {
			t.Fatalf("IsAdmin(%s) = %v, want %v", tc.user, got, tc.want)
		}
	}
	if err := repo.AddAdmin(ctx, fx.ShopID, "helper"); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if ok, _ := repo.IsAdmin(ctx, fx.ShopID, "helper"); !ok {
		t.Fatalf("expected helper to be admin")
	}

	enabled, err := repo.IsProviderEnabled(ctx, fx.ShopID, domain.ProviderStripe)
	if err != nil || enabled {
		t.Fatalf("provider must default to disabled: %v %v", enabled, err)
	}
	if err := repo.SetProviderEnabled(ctx, fx.ShopID, domain.ProviderStripe, true); err != nil {
		t.Fatalf("SetProviderEnabled: %v", err)
	}
	if enabled, _ := repo.IsProviderEnabled(ctx, fx.ShopID, domain.ProviderStripe); !enabled {
		t.Fatalf("expected stripe enabled")
	}
	list, err := repo.ListProviders(ctx, fx.ShopID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListProviders: %v %+v", err, list)
	}
}
