// Package order is the order ledger: checkout from priced lines and the
// order status graph.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopcore/internal/domain"
	"shopcore/internal/logging"
	orderrepo "shopcore/internal/repository/order"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxNumberAttempts = 5
	defaultPageSize   = 100
	maxPageSize       = 500
)

type Service struct {
	orders    orderrepo.Repository
	products  productLookup
	shops     shopLookup
	cart      cartSource
	logger    *zap.Logger
	newNumber func() string
}

type productLookup interface {
	ListByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

type shopLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Shop, error)
	IsAdmin(ctx context.Context, shopID, userID string) (bool, error)
}

type cartSource interface {
	Lines(ctx context.Context, userID string) ([]domain.CartLine, error)
	MaterializeAndClear(ctx context.Context, userID string) ([]domain.CartLine, error)
}

func New(orders orderrepo.Repository, products productLookup, shops shopLookup, cart cartSource, logger *zap.Logger) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		shops:     shops,
		cart:      cart,
		logger:    logging.OrNop(logger).Named("order"),
		newNumber: newOrderNumber,
	}
}

func newOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:8])
}

type LineInput struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type CreateInput struct {
	// CallerID is the authenticated user; it must equal UserID.
	CallerID        string          `json:"-"`
	UserID          string          `json:"userId" binding:"required"`
	ShopID          string          `json:"shopId" binding:"required,uuid"`
	Lines           []LineInput     `json:"items" binding:"omitempty,dive"`
	ShippingAddress string          `json:"shippingAddress"`
	ShippingMethod  string          `json:"shippingMethod"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	PaymentMethod   string          `json:"paymentMethod"`
}

// Create checks out the requested lines, or the whole cart when none are
// given. Unit prices come from the cart snapshot when the product is in the
// cart, otherwise from the product's effective price. The cart is cleared
// only after the order is committed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if in.CallerID == "" || in.UserID != in.CallerID {
		return nil, fmt.Errorf("create order for another user: %w", domain.ErrForbidden)
	}
	if in.ShippingCost.IsNegative() {
		return nil, domain.NewValidationError("shippingCost", "must not be negative")
	}
	shop, err := s.shops.GetByID(ctx, in.ShopID)
	if err != nil {
		return nil, err
	}
	if !shop.IsActive {
		return nil, domain.NewValidationError("shopId", "shop is not accepting orders")
	}

	cartLines, err := s.cart.Lines(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	requested := in.Lines
	if len(requested) == 0 {
		for _, l := range cartLines {
			requested = append(requested, LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
		}
	}
	if len(requested) == 0 {
		return nil, domain.NewValidationError("items", "order has no lines")
	}

	lines, err := s.priceLines(ctx, shop.ID, requested, cartLines)
	if err != nil {
		return nil, err
	}

	created, err := s.createWithNumber(ctx, orderrepo.NewOrder{
		UserID:          in.UserID,
		ShopID:          shop.ID,
		Currency:        shop.Currency,
		ShippingAddress: in.ShippingAddress,
		ShippingMethod:  in.ShippingMethod,
		ShippingCost:    in.ShippingCost,
		PaymentMethod:   in.PaymentMethod,
		Lines:           lines,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.String("shop_id", created.ShopID),
		zap.String("total", created.TotalAmount.String()),
	)

	s.clearCart(ctx, created)
	return created, nil
}

// priceLines merges duplicate products and resolves names and prices.
func (s *Service) priceLines(ctx context.Context, shopID string, requested []LineInput, cartLines []domain.CartLine) ([]domain.OrderLine, error) {
	quantities := make(map[string]int, len(requested))
	var ids []string
	for _, l := range requested {
		if l.Quantity < 1 {
			return nil, domain.NewValidationError("quantity", "must be at least 1")
		}
		if _, seen := quantities[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		quantities[l.ProductID] += l.Quantity
	}

	products, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	snapshot := make(map[string]decimal.Decimal, len(cartLines))
	for _, l := range cartLines {
		snapshot[l.ProductID] = l.UnitPrice
	}

	lines := make([]domain.OrderLine, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, domain.NewValidationError("productId", "product "+id+" not found")
		}
		if p.ShopID != shopID {
			return nil, domain.NewValidationError("productId", "product "+id+" belongs to another shop")
		}
		if !p.IsAvailable {
			return nil, domain.NewValidationError("productId", "product "+id+" is not available")
		}
		price, ok := snapshot[id]
		if !ok {
			price = p.EffectivePrice()
		}
		lines = append(lines, domain.OrderLine{
			ProductID:   id,
			ProductName: p.Name,
			Quantity:    quantities[id],
			UnitPrice:   price,
		})
	}
	return lines, nil
}

func (s *Service) createWithNumber(ctx context.Context, in orderrepo.NewOrder) (*domain.Order, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		in.OrderNumber = s.newNumber()
		o, err := s.orders.Create(ctx, in)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		s.logger.Warn("order number collision", zap.String("order_number", in.OrderNumber), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("allocate order number: %w", domain.ErrAlreadyExists)
}

// clearCart runs after the order transaction. A failure here leaves a stale
// cart behind but never fails the checkout.
func (s *Service) clearCart(ctx context.Context, o *domain.Order) {
	cleared, err := s.cart.MaterializeAndClear(ctx, o.UserID)
	if err != nil {
		s.logger.Error("cart not cleared after checkout, stale lines remain",
			zap.String("order_id", o.ID), zap.String("user_id", o.UserID), zap.Error(err))
		return
	}
	ordered := make(map[string]int, len(o.Lines))
	for _, l := range o.Lines {
		ordered[l.ProductID] = l.Quantity
	}
	for _, l := range cleared {
		if q, ok := ordered[l.ProductID]; !ok || q != l.Quantity {
			s.logger.Warn("cleared cart differs from ordered lines",
				zap.String("order_id", o.ID), zap.String("product_id", l.ProductID), zap.Int("cart_quantity", l.Quantity))
		}
	}
}

// Find loads an order without access checks.
func (s *Service) Find(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Get returns the order to its owner or to an admin of its shop.
func (s *Service) Get(ctx context.Context, callerID, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID == callerID {
		return o, nil
	}
	if err := s.RequireShopAdmin(ctx, o.ShopID, callerID); err != nil {
		return nil, err
	}
	return o, nil
}

// Transition moves the order along the status graph with a conditional write.
func (s *Service) Transition(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.NewValidationError("status", "unknown order status "+string(to))
	}
	o, err := s.orders.UpdateStatus(ctx, id, to, domain.OrderPreStates(to))
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed", zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
	return o, nil
}

// UpdateStatus is the shop admin's manual transition.
func (s *Service) UpdateStatus(ctx context.Context, callerID, id string, to domain.OrderStatus) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.RequireShopAdmin(ctx, o.ShopID, callerID); err != nil {
		return nil, err
	}
	return s.Transition(ctx, id, to)
}

func (s *Service) ListMine(ctx context.Context, userID string, skip, limit int) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID, page(nil, skip, limit))
}

func (s *Service) ListForShop(ctx context.Context, callerID, shopID string, status *domain.OrderStatus, skip, limit int) ([]domain.Order, error) {
	if status != nil && !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown order status "+string(*status))
	}
	if err := s.RequireShopAdmin(ctx, shopID, callerID); err != nil {
		return nil, err
	}
	return s.orders.ListByShop(ctx, shopID, page(status, skip, limit))
}

// RequireShopAdmin returns domain.ErrForbidden unless userID administers the shop.
func (s *Service) RequireShopAdmin(ctx context.Context, shopID, userID string) error {
	ok, err := s.shops.IsAdmin(ctx, shopID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not an admin of shop %s: %w", shopID, domain.ErrForbidden)
	}
	return nil
}

func page(status *domain.OrderStatus, skip, limit int) orderrepo.ListFilter {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return orderrepo.ListFilter{Status: status, Skip: skip, Limit: limit}
}
