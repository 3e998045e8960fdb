package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-shop/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service owns the storefront connection pool.
type Service interface {
	DB() *sql.DB
	// Health returns a map of health status information.
	Health(ctx context.Context) map[string]string
	Close() error
}

type service struct {
	db *sql.DB
}

// New opens a pgx-backed pool for cfg. The connection is verified lazily.
func New(cfg config.DatabaseConfig) (Service, error) {
	db, err := Open(cfg.DSN())
	if err != nil {
		return nil, err
	}
	return &service{db: db}, nil
}

// Open opens a pgx pool for dsn with the storefront's pool limits.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	dbStats := s.db.Stats()
	stats["status"] = "up"
	stats["open_connections"] = fmt.Sprint(dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprint(dbStats.InUse)
	stats["idle"] = fmt.Sprint(dbStats.Idle)
	return stats
}

func (s *service) Close() error {
	return s.db.Close()
}
