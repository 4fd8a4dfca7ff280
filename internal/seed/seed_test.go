package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcore/internal/domain"
	shoprepo "shopcore/internal/repository/shop"
)

type memShops struct {
	upserts  int
	enabled  map[domain.PaymentProvider]bool
	failWith error
}

func (m *memShops) Upsert(_ context.Context, in shoprepo.NewShop) (*domain.Shop, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.upserts++
	return &domain.Shop{ID: "shop-1", OwnerID: in.OwnerID, Name: in.Name, Currency: in.Currency, IsActive: true}, nil
}

func (m *memShops) SetProviderEnabled(_ context.Context, _ string, p domain.PaymentProvider, enabled bool) error {
	if m.enabled == nil {
		m.enabled = map[domain.PaymentProvider]bool{}
	}
	m.enabled[p] = enabled
	return nil
}

type memProducts struct {
	bySKU map[string]domain.Product
}

func (m *memProducts) Upsert(_ context.Context, p domain.Product, sku string) (*domain.Product, error) {
	if m.bySKU == nil {
		m.bySKU = map[string]domain.Product{}
	}
	m.bySKU[sku] = p
	return &p, nil
}

func TestApply_Idempotent(t *testing.T) {
	shops, products := &memShops{}, &memProducts{}

	for i := 0; i < 2; i++ {
		shop, err := Apply(context.Background(), shops, products, "owner-1", nil)
		require.NoError(t, err)
		assert.Equal(t, "owner-1", shop.OwnerID)
	}

	assert.Len(t, products.bySKU, len(demoProducts))
	mug := products.bySKU["SKU-DEMO-MUG"]
	require.NotNil(t, mug.DiscountPrice)
	assert.Equal(t, "9.99", mug.EffectivePrice().StringFixed(2))
	assert.Equal(t, "shop-1", mug.ShopID)
	for _, p := range domain.Providers {
		assert.True(t, shops.enabled[p], "provider %s not enabled", p)
	}
}

func TestApply_ShopFailure(t *testing.T) {
	_, err := Apply(context.Background(), &memShops{failWith: errors.New("down")}, &memProducts{}, "owner-1", nil)
	assert.ErrorContains(t, err, "ensure shop")
}
