package order

import (
	"context"

	"shopcore/internal/domain"

	"github.com/shopspring/decimal"
)

// NewOrder is the input for Create. Lines carry the snapshotted unit price.
type NewOrder struct {
	UserID          string
	ShopID          string
	OrderNumber     string
	Currency        string
	ShippingAddress string
	ShippingMethod  string
	ShippingCost    decimal.Decimal
	PaymentMethod   string
	Lines           []domain.OrderLine
}

type ListFilter struct {
	Status *domain.OrderStatus
	Skip   int
	Limit  int
}

type Repository interface {
	// Create writes the order and its lines in one transaction. It returns
	// domain.ErrAlreadyExists when the order number is taken.
	Create(ctx context.Context, in NewOrder) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, f ListFilter) ([]domain.Order, error)
	ListByShop(ctx context.Context, shopID string, f ListFilter) ([]domain.Order, error)
	// UpdateStatus moves the order to "to" only if its current status is one
	// of "from". Otherwise it returns domain.ErrNotFound or a
	// *domain.InvalidTransitionError carrying the observed status.
	UpdateStatus(ctx context.Context, id string, to domain.OrderStatus, from []domain.OrderStatus) (*domain.Order, error)
}
