package domain

import "github.com/shopspring/decimal"

// CartLine is one distinct product in the cart. Name and Price are the
// values seen when the line was first created.
type CartLine struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price * quantity for the line.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
