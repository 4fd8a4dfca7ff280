package product

import (
	"context"

	"shopcore/internal/domain"
	productrepo "shopcore/internal/repository/product"
)

// Service exposes a shop's catalogue to buyers.
type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

// ListAvailable returns the shop's products that can currently be ordered.
func (s *Service) ListAvailable(ctx context.Context, shopID string) ([]domain.Product, error) {
	products, err := s.repo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.IsAvailable && p.Stock > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}
