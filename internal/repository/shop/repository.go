package shop

import (
	"context"

	"shopcore/internal/domain"
)

type NewShop struct {
	OwnerID  string
	Name     string
	Slug     string
	Currency string
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Shop, error)
	Upsert(ctx context.Context, in NewShop) (*domain.Shop, error)
	// IsAdmin reports whether userID owns the shop or is one of its admins.
	IsAdmin(ctx context.Context, shopID, userID string) (bool, error)
	AddAdmin(ctx context.Context, shopID, userID string) error
	IsProviderEnabled(ctx context.Context, shopID string, provider domain.PaymentProvider) (bool, error)
	SetProviderEnabled(ctx context.Context, shopID string, provider domain.PaymentProvider, enabled bool) error
	ListProviders(ctx context.Context, shopID string) ([]domain.ShopProvider, error)
}
