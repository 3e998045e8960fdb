package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-shop/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, id string) (domain.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	query := `INSERT INTO products (id, name, price) VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, product.ID, product.Name, product.Price); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	query := `SELECT id, name, price FROM products WHERE id = $1`

	var product domain.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(&product.ID, &product.Name, &product.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByIDs returns the products among ids that exist, keyed by id.
func (r *productRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	found := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query := `SELECT id, name, price FROM products WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		found[product.ID] = product
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return found, nil
}

// List returns the whole catalog in insertion order.
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT id, name, price FROM products ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
