package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in a user's cart. UnitPrice is captured on the
// first add and kept on later increments.
type CartLine struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	UserID     string          `json:"userId"`
	Lines      []CartLine      `json:"items"`
	ItemsCount int             `json:"itemsCount"`
	Total      decimal.Decimal `json:"totalPrice"`
}

// NewCart builds the cart view with its totals.
func NewCart(userID string, lines []CartLine) Cart {
	c := Cart{UserID: userID, Lines: lines, Total: decimal.Zero}
	if c.Lines == nil {
		c.Lines = []CartLine{}
	}
	for _, l := range lines {
		c.ItemsCount += l.Quantity
		c.Total = c.Total.Add(l.Total())
	}
	return c
}
