package server

import (
	"fmt"
	"net/http"
	"time"

	"go-shop/internal/config"
	"go-shop/internal/database"
	custommiddleware "go-shop/internal/middleware"
	"go-shop/internal/repository"
	"go-shop/internal/service"
	"go-shop/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StorefrontServer is the reference catalog/order service.
type StorefrontServer struct {
	*http.Server
	Settler *service.Settler

	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewStorefrontServer wires repositories, services and routes over db.
// redisClient may be nil, which disables rate limiting.
func NewStorefrontServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *StorefrontServer {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := db.Health(r.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, stats)
	})

	productRepo := repository.NewProductRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())

	orderService := service.NewOrderService(productRepo, orderRepo)

	var placeOrder []func(http.Handler) http.Handler
	if redisClient != nil {
		placeOrder = append(placeOrder, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit:orders",
		}, logger))
	}

	transport.NewStorefrontHandler(orderService, logger).RegisterRoutes(router, placeOrder...)

	return &StorefrontServer{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Storefront.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Settler: service.NewSettler(orderRepo, cfg.Storefront.SettleAfter, cfg.Storefront.SettleEvery, logger),
		logger:  logger,
		db:      db,
		redis:   redisClient,
	}
}

func (s *StorefrontServer) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	s.logger.Sync()
	return nil
}
