package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-shop/internal/config"
	"go-shop/internal/database"
	"go-shop/internal/logger"
	"go-shop/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log = logger.NewWithDefaults()
		log.Warn("Invalid logging configuration, using defaults", zap.Error(err))
	}
	defer log.Sync()

	log.Info("Starting storefront",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Storefront.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	log.Info("Database health check", zap.Any("health", db.Health(ctx)))

	if err := database.PrepareSchema(db.DB(), cfg.Storefront.MigrationDir, cfg.Storefront.ResetSchema, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, rate limiting fails open", zap.Error(err))
		}
	} else {
		log.Info("Redis not configured, rate limiting disabled")
	}

	srv := server.NewStorefrontServer(cfg, log, db, redisClient)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.Settler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Storefront stopped with error", zap.Error(err))
	}

	if err := srv.Close(); err != nil {
		log.Error("Error closing server resources", zap.Error(err))
	}
	log.Info("Graceful shutdown complete")
}
