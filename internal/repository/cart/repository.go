package cart

import (
	"context"

	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// AddOrIncrement inserts a line or adds quantity to the existing one for
	// (userID, productID). The stored unit price of an existing line is kept.
	AddOrIncrement(ctx context.Context, userID, productID string, quantity int, unitPrice decimal.Decimal) (*domain.CartLine, error)
	List(ctx context.Context, userID string) ([]domain.CartLine, error)
	GetLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error)
	SetQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error)
	RemoveLine(ctx context.Context, userID, lineID string) error
	Clear(ctx context.Context, userID string) error
	// MaterializeAndClear deletes every line of the user and returns them.
	MaterializeAndClear(ctx context.Context, userID string) ([]domain.CartLine, error)
}
