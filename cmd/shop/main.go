package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-shop/internal/config"
	"go-shop/internal/logger"
	"go-shop/internal/server"
	"go-shop/internal/session"
	"go-shop/internal/shopapi"

	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stops the sync loop; refreshes still in flight are dropped.
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log = logger.NewWithDefaults()
		log.Warn("Invalid logging configuration, using defaults", zap.Error(err))
	}
	defer log.Sync()

	log.Info("Starting shop client",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.Duration("sync_interval", cfg.Sync.Interval),
	)

	client := shopapi.NewClient(cfg.Remote, log)
	sess := session.New(client, cfg.Sync.Interval, log)

	if err := sess.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync loop", zap.Error(err))
	}

	srv := server.NewServer(cfg, log, sess)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
