package cart

import (
	"context"
	"errors"
	"fmt"

	"shopcore/internal/domain"
	"shopcore/internal/logging"
	cartrepo "shopcore/internal/repository/cart"

	"go.uber.org/zap"
)

type Service struct {
	repo     cartrepo.Repository
	products productRepo
	logger   *zap.Logger
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

func New(repo cartrepo.Repository, products productRepo, logger *zap.Logger) *Service {
	return &Service{repo: repo, products: products, logger: logging.OrNop(logger)}
}

type AddInput struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// Get returns the user's cart with its totals.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	lines, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	c := domain.NewCart(userID, lines)
	return &c, nil
}

// Lines returns the raw cart lines of the user.
func (s *Service) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return s.repo.List(ctx, userID)
}

// Add puts quantity units of a product in the cart, priced at the product's
// effective price. Adding a product already in the cart increments the line.
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (*domain.Cart, error) {
	if in.Quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	p, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("productId", "product not found")
		}
		return nil, err
	}
	if !p.IsAvailable {
		return nil, domain.NewValidationError("productId", "product is not available")
	}

	lines, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	wanted := in.Quantity
	for _, l := range lines {
		if l.ProductID == p.ID {
			wanted += l.Quantity
		}
	}
	if wanted > p.Stock {
		return nil, domain.NewValidationError("quantity", fmt.Sprintf("only %d in stock", p.Stock))
	}

	line, err := s.repo.AddOrIncrement(ctx, userID, p.ID, in.Quantity, p.EffectivePrice())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("cart line added",
		zap.String("user_id", userID),
		zap.String("product_id", p.ID),
		zap.Int("quantity", line.Quantity),
	)
	return s.Get(ctx, userID)
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		if err := s.repo.RemoveLine(ctx, userID, lineID); err != nil {
			return nil, err
		}
		return s.Get(ctx, userID)
	}

	line, err := s.repo.GetLine(ctx, userID, lineID)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, domain.NewValidationError("quantity", fmt.Sprintf("only %d in stock", p.Stock))
	}
	if _, err := s.repo.SetQuantity(ctx, userID, lineID, quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID, lineID string) error {
	return s.repo.RemoveLine(ctx, userID, lineID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.repo.Clear(ctx, userID)
}

// MaterializeAndClear empties the cart and returns what it held. The order
// service calls it once the order is committed.
func (s *Service) MaterializeAndClear(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return s.repo.MaterializeAndClear(ctx, userID)
}
