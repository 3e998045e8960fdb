package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-shop/internal/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	// SettlePending moves pending orders created at or before olderThan to
	// status and returns how many changed.
	SettlePending(ctx context.Context, olderThan time.Time, status string) (int64, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create stores the order and its items in one transaction.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, status, total, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		order.ID, order.Status, order.Total, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, item_id, quantity, subtotal) VALUES ($1, $2, $3, $4, $5)`,
			order.ID, i, item.ItemID, item.Quantity, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// FindByID retrieves an order with its items.
func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, total, created_at FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.Status, &order.Total, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	items, err := r.items(ctx, `WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}
	return order, nil
}

// List returns every order with its items, oldest first.
func (r *orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, total, created_at FROM orders ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.Status, &order.Total, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	items, err := r.items(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

func (r *orderRepository) SettlePending(ctx context.Context, olderThan time.Time, status string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE status = $2 AND created_at <= $3`,
		status, domain.OrderStatusPending, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to settle orders: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// items loads order items grouped by order id, in submission order.
func (r *orderRepository) items(ctx context.Context, where string, args ...interface{}) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, item_id, quantity, subtotal FROM order_items `+where+` ORDER BY order_id, position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem)
	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ItemID, &item.Quantity, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}
