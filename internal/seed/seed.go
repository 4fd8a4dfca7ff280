// Package seed loads a demo shop for manual testing.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopcore/internal/domain"
	shoprepo "shopcore/internal/repository/shop"
)

type shopStore interface {
	Upsert(ctx context.Context, in shoprepo.NewShop) (*domain.Shop, error)
	SetProviderEnabled(ctx context.Context, shopID string, provider domain.PaymentProvider, enabled bool) error
}

type productStore interface {
	Upsert(ctx context.Context, p domain.Product, sku string) (*domain.Product, error)
}

type productSeed struct {
	SKU         string
	Name        string
	Description string
	Price       string
	Discount    string
	Stock       int
}

var demoProducts = []productSeed{
	{SKU: "SKU-DEMO-TSHIRT", Name: "Demo T-Shirt", Description: "Soft cotton tee for demo purposes", Price: "19.99", Stock: 100},
	{SKU: "SKU-DEMO-MUG", Name: "Demo Mug", Description: "Ceramic mug with demo logo", Price: "12.99", Discount: "9.99", Stock: 40},
	{SKU: "SKU-DEMO-POSTER", Name: "Demo Poster", Price: "7.50", Stock: 0},
}

// Apply upserts the demo shop owned by ownerID, its products, and enables
// every provider for it. It is idempotent.
func Apply(ctx context.Context, shops shopStore, products productStore, ownerID string, logger *zap.Logger) (*domain.Shop, error) {
	shop, err := shops.Upsert(ctx, shoprepo.NewShop{
		OwnerID:  ownerID,
		Name:     "Demo Shop",
		Slug:     "demo",
		Currency: "USD",
	})
	if err != nil {
		return nil, fmt.Errorf("ensure shop: %w", err)
	}

	for _, ps := range demoProducts {
		p := domain.Product{
			ShopID:      shop.ID,
			Name:        ps.Name,
			Description: ps.Description,
			Price:       decimal.RequireFromString(ps.Price),
			Stock:       ps.Stock,
			IsAvailable: true,
		}
		if ps.Discount != "" {
			d := decimal.RequireFromString(ps.Discount)
			p.DiscountPrice = &d
		}
		if _, err := products.Upsert(ctx, p, ps.SKU); err != nil {
			return nil, fmt.Errorf("upsert product %s: %w", ps.SKU, err)
		}
	}

	for _, provider := range domain.Providers {
		if err := shops.SetProviderEnabled(ctx, shop.ID, provider, true); err != nil {
			return nil, fmt.Errorf("enable %s: %w", provider, err)
		}
	}

	if logger != nil {
		logger.Info("seed applied", zap.String("shop_id", shop.ID), zap.Int("products", len(demoProducts)))
	}
	return shop, nil
}
