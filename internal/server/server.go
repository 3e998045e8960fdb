package server

import (
	"fmt"
	"net/http"
	"time"

	"go-shop/internal/config"
	custommiddleware "go-shop/internal/middleware"
	"go-shop/internal/session"
	"go-shop/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server is the local session API.
type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	session *session.Session
}

func NewServer(cfg *config.Config, logger *zap.Logger, sess *session.Session) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	router.Get("/health", health)

	transport.NewSessionHandler(sess, logger).RegisterRoutes(router)

	return &Server{
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:     router,
			IdleTimeout: time.Minute,
			ReadTimeout: 10 * time.Second,
			// Checkout waits on the remote service, which has no deadline by default.
			WriteTimeout: 0,
		},
		config:  cfg,
		logger:  logger,
		session: sess,
	}
}

// Close stops the sync loop. Call it after Shutdown.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.session != nil {
		s.session.Stop()
	}

	s.logger.Sync()
	return nil
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
