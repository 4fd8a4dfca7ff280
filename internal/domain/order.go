package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// orderTransitions lists the allowed successors of each order status.
// PAID -> PENDING is the reconciliation back-edge used when a payment fails
// after it was reported as completed.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusCancelled:  {OrderStatusPending},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusRefunded, OrderStatusPending},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  nil,
	OrderStatusRefunded:   nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> to exists.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderPreStates returns every status that may move to "to".
func OrderPreStates(to OrderStatus) []OrderStatus {
	var from []OrderStatus
	for _, s := range orderStatusOrder {
		if s.CanTransitionTo(to) {
			from = append(from, s)
		}
	}
	return from
}

var orderStatusOrder = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	ShopID          string          `json:"shopId"`
	OrderNumber     string          `json:"orderNumber"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        string          `json:"currency"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
	ShippingMethod  string          `json:"shippingMethod,omitempty"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	Lines           []OrderLine     `json:"lines,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ChargeAmount is what the customer pays: line total plus shipping.
func (o Order) ChargeAmount() decimal.Decimal {
	return o.TotalAmount.Add(o.ShippingCost)
}

type OrderLine struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal sums quantity * unit price without rounding.
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}
