package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-shop/internal/domain"
	"go-shop/internal/repository"
)

// Mock repositories for testing
type mockProductRepository struct {
	products map[string]domain.Product
	err      error
}

func newMockProductRepository(products ...domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	found := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (m *mockProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

type mockOrderRepository struct {
	mu        sync.Mutex
	orders    []*domain.Order
	createErr error
	settleErr error
	cutoffs   []time.Time
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepository) SettlePending(ctx context.Context, olderThan time.Time, status string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, olderThan)
	if m.settleErr != nil {
		return 0, m.settleErr
	}
	var n int64
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusPending && !o.CreatedAt.After(olderThan) {
			o.Status = status
			n++
		}
	}
	return n, nil
}

func (m *mockOrderRepository) status(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[i].Status
}

var errDatabase = errors.New("database unavailable")
