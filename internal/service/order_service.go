package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-shop/internal/domain"
	"go-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrUnknownItem     = errors.New("unknown item")
)

// UnknownItemsError lists the requested item ids missing from the catalog.
type UnknownItemsError struct {
	IDs []string
}

func (e *UnknownItemsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownItem, strings.Join(e.IDs, ", "))
}

func (e *UnknownItemsError) Unwrap() error {
	return ErrUnknownItem
}

// OrderService defines the interface for storefront business logic
type OrderService interface {
	Catalog(ctx context.Context) ([]domain.Product, error)
	Orders(ctx context.Context) ([]domain.Order, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
}

type orderService struct {
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	now         func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(productRepo repository.ProductRepository, orderRepo repository.OrderRepository) OrderService {
	return &orderService{
		productRepo: productRepo,
		orderRepo:   orderRepo,
		now:         time.Now,
	}
}

func (s *orderService) Catalog(ctx context.Context) ([]domain.Product, error) {
	return s.productRepo.List(ctx)
}

func (s *orderService) Orders(ctx context.Context) ([]domain.Order, error) {
	return s.orderRepo.List(ctx)
}

// PlaceOrder prices every line from the catalog and stores the order as pending.
// Lines keep the order they were requested in.
func (s *orderService) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %s", ErrInvalidQuantity, item.ItemID)
		}
		ids = append(ids, item.ItemID)
	}

	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	var missing []string
	order := &domain.Order{
		ID:        uuid.NewString(),
		Status:    domain.OrderStatusPending,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		Items:     make([]domain.OrderItem, 0, len(req.Items)),
		Total:     decimal.Zero,
	}
	for _, item := range req.Items {
		product, ok := products[item.ItemID]
		if !ok {
			missing = append(missing, item.ItemID)
			continue
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.Items = append(order.Items, domain.OrderItem{
			ItemID:   item.ItemID,
			Quantity: item.Quantity,
			Subtotal: subtotal,
		})
		order.Total = order.Total.Add(subtotal)
	}

	if len(missing) > 0 {
		return nil, &UnknownItemsError{IDs: missing}
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	return order, nil
}
