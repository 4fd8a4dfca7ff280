package product

import (
	"context"

	"shopcore/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// ListByIDs returns the products found; missing ids are simply absent.
	ListByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	ListByShop(ctx context.Context, shopID string) ([]domain.Product, error)
	Upsert(ctx context.Context, p domain.Product, sku string) (*domain.Product, error)
}
