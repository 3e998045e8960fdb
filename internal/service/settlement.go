package service

import (
	"context"
	"time"

	"go-shop/internal/domain"
	"go-shop/internal/repository"

	"go.uber.org/zap"
)

// Settler marks pending orders as paid once they are old enough, standing in
// for a payment provider so clients can watch statuses move.
type Settler struct {
	orderRepo repository.OrderRepository
	after     time.Duration
	every     time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewSettler(orderRepo repository.OrderRepository, after, every time.Duration, logger *zap.Logger) *Settler {
	return &Settler{
		orderRepo: orderRepo,
		after:     after,
		every:     every,
		logger:    logger.Named("settler"),
		now:       time.Now,
	}
}

// Run settles orders every interval until ctx is done.
func (s *Settler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	s.logger.Info("Settlement worker started",
		zap.Duration("settle_after", s.after),
		zap.Duration("interval", s.every),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Settlement worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SettleOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Failed to settle orders", zap.Error(err))
			}
		}
	}
}

// SettleOnce marks pending orders older than the settle delay as paid.
func (s *Settler) SettleOnce(ctx context.Context) (int64, error) {
	settled, err := s.orderRepo.SettlePending(ctx, s.now().UTC().Add(-s.after), domain.OrderStatusPaid)
	if err != nil {
		return 0, err
	}
	if settled > 0 {
		s.logger.Info("Orders settled", zap.Int64("count", settled))
	}
	return settled, nil
}
