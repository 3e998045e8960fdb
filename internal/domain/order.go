package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Statuses written by the storefront. Clients treat status as an open tag.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

// Order is a server-created order. The client never mutates it.
type Order struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
}

// OrderItem is one priced line of an order. Subtotal is computed by the server.
type OrderItem struct {
	ItemID   string          `json:"item_id"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// UnmarshalJSON accepts ids written as strings or numbers and creation times
// in any form ParseTimestamp reads, so that records written by other
// backends still decode.
func (o *Order) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        OpaqueID        `json:"id"`
		Status    string          `json:"status"`
		CreatedAt json.RawMessage `json:"created_at"`
		Items     []OrderItem     `json:"items"`
		Total     decimal.Decimal `json:"total"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*o = Order{
		ID:        wire.ID.String(),
		Status:    wire.Status,
		CreatedAt: ParseTimestamp(wire.CreatedAt),
		Items:     wire.Items,
		Total:     wire.Total,
	}
	return nil
}

func (i *OrderItem) UnmarshalJSON(data []byte) error {
	var wire struct {
		ItemID   OpaqueID        `json:"item_id"`
		Quantity int             `json:"quantity"`
		Subtotal decimal.Decimal `json:"subtotal"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*i = OrderItem{
		ItemID:   wire.ItemID.String(),
		Quantity: wire.Quantity,
		Subtotal: wire.Subtotal,
	}
	return nil
}

// OrderRequest is the body of an order submission. Prices are never sent.
type OrderRequest struct {
	Items []OrderRequestItem `json:"items" validate:"required,min=1,dive"`
}

// OrderRequestItem references a product and the wanted quantity.
type OrderRequestItem struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}
