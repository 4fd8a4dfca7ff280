package domain

import "time"

type Shop struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// ShopProvider records whether a shop accepts payments through a provider.
type ShopProvider struct {
	ShopID   string          `json:"shopId"`
	Provider PaymentProvider `json:"provider"`
	Enabled  bool            `json:"enabled"`
}
