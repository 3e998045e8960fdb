package domain

import (
	"github.com/shopspring/decimal"
)

// Product represents a purchasable catalog entry as seen by the client.
// An empty ID means the upstream record carried no identifier.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Actionable reports whether the product can be added to a cart.
func (p Product) Actionable() bool {
	return p.ID != ""
}
