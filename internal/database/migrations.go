package database

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// RunMigrations executes all pending database migrations
func RunMigrations(db *sql.DB, migrationsDir string, logger *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	logger.Info("Checking for pending migrations...", zap.String("dir", migrationsDir))

	if err := goose.Up(db, migrationsDir); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	logger.Info("Migrations completed successfully", zap.Int64("version", version))
	return nil
}

// ResetMigrations rolls every migration back. Used to rebuild a development schema.
func ResetMigrations(db *sql.DB, migrationsDir string, logger *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	logger.Warn("Rolling back all migrations", zap.String("dir", migrationsDir))

	if err := goose.Reset(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	return nil
}

// PrepareSchema brings the schema up to date, first rolling everything back
// when reset is set. Rolling back drops every order.
func PrepareSchema(db *sql.DB, migrationsDir string, reset bool, logger *zap.Logger) error {
	if reset {
		if err := ResetMigrations(db, migrationsDir, logger); err != nil {
			return err
		}
	}
	return RunMigrations(db, migrationsDir, logger)
}
