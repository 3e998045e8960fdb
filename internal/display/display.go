// Package display holds the presentation rules shared by every view of the
// session: money formatting, short ids, order status tones and ordering.
package display

import (
	"strings"

	"go-shop/internal/domain"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "R$"

const (
	CartIDLength  = 8
	OrderIDLength = 6
)

// Tone groups order statuses for coloring. Statuses are open-ended, so
// anything not in the table is ToneNeutral.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneWarning  Tone = "warning"
	ToneNeutral  Tone = "neutral"
)

// StatusTones maps lower-cased status tags to tones. Add entries here when the
// service introduces statuses worth highlighting.
var StatusTones = map[string]Tone{
	"paid":     TonePositive,
	"approved": TonePositive,
	"pending":  ToneWarning,
}

// StatusTone returns the tone for status, ignoring case.
func StatusTone(status string) Tone {
	if tone, ok := StatusTones[strings.ToLower(strings.TrimSpace(status))]; ok {
		return tone
	}
	return ToneNeutral
}

// Money formats an amount with two decimals, e.g. "R$ 20.00".
func Money(amount decimal.Decimal) string {
	return CurrencySymbol + " " + amount.StringFixed(2)
}

// ShortID truncates id to at most n runes.
func ShortID(id string, n int) string {
	runes := []rune(id)
	if n < 0 || len(runes) <= n {
		return id
	}
	return string(runes[:n])
}

// NewestFirst returns orders in reverse of the server's order, leaving the
// input untouched.
func NewestFirst(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, order := range orders {
		out[len(orders)-1-i] = order
	}
	return out
}
