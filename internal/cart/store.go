// Package cart holds the client-local cart: an ordered set of lines, one per
// product, living only for the session.
package cart

import (
	"sync"

	"go-shop/internal/domain"

	"github.com/shopspring/decimal"
)

// Store is the in-memory cart. The zero value is an empty cart ready to use.
type Store struct {
	mu    sync.RWMutex
	lines []domain.CartLine
}

// NewStore creates an empty cart.
func NewStore() *Store {
	return &Store{}
}

// Add puts one unit of product in the cart. An existing line keeps its name and
// price and only gains quantity; otherwise a new line is appended. Products
// without an id are not actionable and leave the cart untouched.
func (s *Store) Add(product domain.Product) (domain.CartLine, bool) {
	if !product.Actionable() {
		return domain.CartLine{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(product.ID); i >= 0 {
		s.lines[i].Quantity++
		return s.lines[i], true
	}

	line := domain.CartLine{
		ItemID:   product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Quantity: 1,
	}
	s.lines = append(s.lines, line)
	return line, true
}

// Remove deletes the whole line for itemID. Unknown ids are ignored.
func (s *Store) Remove(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(itemID)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Subtract takes a submitted order out of the cart. Each line loses the
// quantity submitted for it and is dropped when nothing is left, so units
// added after the order was built stay in the cart.
func (s *Store) Subtract(req domain.OrderRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range req.Items {
		i := s.indexOf(item.ItemID)
		if i < 0 {
			continue
		}
		s.lines[i].Quantity -= item.Quantity
		if s.lines[i].Quantity <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		}
	}
}

// Total sums price * quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]domain.CartLine, len(s.lines))
	copy(lines, s.lines)
	return lines
}

// Line returns the line for itemID, if any.
func (s *Store) Line(itemID string) (domain.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(itemID); i >= 0 {
		return s.lines[i], true
	}
	return domain.CartLine{}, false
}

// Len returns the number of distinct lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Payload reduces the cart to an order submission. Names and prices are
// dropped: the server prices every order itself.
func (s *Store) Payload() domain.OrderRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.OrderRequestItem, 0, len(s.lines))
	for _, line := range s.lines {
		items = append(items, domain.OrderRequestItem{
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}
	return domain.OrderRequest{Items: items}
}

// indexOf must be called with mu held.
func (s *Store) indexOf(itemID string) int {
	for i := range s.lines {
		if s.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}
