// Package normalize maps raw catalog records, whose field casing depends on the
// upstream that produced them, onto the canonical domain.Product.
//
// Each canonical field has a Resolution: the keys tried in order and the value
// used when none of them yields a usable value. A key yields a value when it is
// present, not JSON null, and decodes into the field's type. The first key that
// yields a value wins, even if that value is empty.
package normalize

import (
	"bytes"
	"encoding/json"

	"go-shop/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultName is shown for catalog records that carry no name.
const DefaultName = "Produto"

// Record is one raw catalog record as received from the remote service.
type Record map[string]json.RawMessage

// Resolution lists the keys tried, in order, for one canonical field.
type Resolution struct {
	Field string
	Keys  []string
}

var (
	IDResolution    = Resolution{Field: "id", Keys: []string{"id", "ID", "Id"}}
	NameResolution  = Resolution{Field: "name", Keys: []string{"name", "Name"}}
	PriceResolution = Resolution{Field: "price", Keys: []string{"price", "Price"}}
)

// Table returns the resolutions applied to every catalog record, in field order.
func Table() []Resolution {
	return []Resolution{IDResolution, NameResolution, PriceResolution}
}

// resolve returns the first raw value among the resolution's keys that decode accepts.
func (r Resolution) resolve(rec Record, decode func(json.RawMessage) bool) bool {
	for _, key := range r.Keys {
		raw, ok := rec[key]
		if !ok || isNull(raw) {
			continue
		}
		if decode(raw) {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ID resolves the record identifier. JSON strings are used as-is and JSON
// numbers by their literal text. Returns "" when no key resolves.
func ID(rec Record) string {
	var id domain.OpaqueID
	IDResolution.resolve(rec, func(raw json.RawMessage) bool {
		return json.Unmarshal(raw, &id) == nil
	})
	return id.String()
}

// Name resolves the display name, falling back to DefaultName.
func Name(rec Record) string {
	name := DefaultName
	NameResolution.resolve(rec, func(raw json.RawMessage) bool {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		name = s
		return true
	})
	return name
}

// Price resolves the price from a JSON number or numeric string, falling back to zero.
func Price(rec Record) decimal.Decimal {
	price := decimal.Zero
	PriceResolution.resolve(rec, func(raw json.RawMessage) bool {
		var d decimal.Decimal
		if err := d.UnmarshalJSON(raw); err != nil {
			return false
		}
		price = d
		return true
	})
	return price
}

// Product normalizes one raw record.
func Product(rec Record) domain.Product {
	return domain.Product{
		ID:    ID(rec),
		Name:  Name(rec),
		Price: Price(rec),
	}
}

// Catalog normalizes a whole collection, preserving order. Records without an
// id are kept so they can still be listed; they are not actionable.
func Catalog(recs []Record) []domain.Product {
	products := make([]domain.Product, 0, len(recs))
	for _, rec := range recs {
		products = append(products, Product(rec))
	}
	return products
}
