// Package syncloop keeps the client's catalog and order caches in step with the
// remote service.
//
// Both collections are fetched concurrently and swapped in together as one
// Snapshot: if either fetch fails, the previous snapshot stays in place. At
// most one refresh runs at a time. Extra refreshes requested with Trigger are
// coalesced and run on the loop goroutine once the current one finishes.
package syncloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go-shop/internal/domain"
	"go-shop/internal/normalize"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 5 * time.Second

var (
	ErrRefreshInFlight = errors.New("refresh already in flight")
	ErrAlreadyStarted  = errors.New("sync loop already started")
	ErrStopped         = errors.New("sync loop stopped")
)

// Source is the remote side of the loop.
type Source interface {
	FetchItems(ctx context.Context) ([]normalize.Record, error)
	FetchOrders(ctx context.Context) ([]domain.Order, error)
}

// Snapshot is one consistent view of catalog and orders.
type Snapshot struct {
	Catalog     []domain.Product
	Orders      []domain.Order
	RefreshedAt time.Time
}

// Status describes the loop's recent refresh history.
type Status struct {
	Running             bool      `json:"running"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	LastErrorAt         time.Time `json:"last_error_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Refreshes           int       `json:"refreshes"`
}

// Loop owns the caches and the polling goroutine.
type Loop struct {
	source   Source
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	snapshot atomic.Pointer[Snapshot]
	busy     atomic.Bool
	stopped  atomic.Bool
	trigger  chan struct{}

	mu      sync.Mutex
	quit    chan struct{}
	done    chan struct{}
	running bool

	statusMu sync.Mutex
	status   Status
}

// New creates a stopped loop. A non-positive interval means DefaultInterval.
func New(source Source, interval time.Duration, logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}

	l := &Loop{
		source:   source,
		interval: interval,
		logger:   logger.Named("syncloop"),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
	l.snapshot.Store(&Snapshot{})
	return l
}

// Start runs one refresh right away and then one per interval until ctx is
// done or Stop is called. Refreshes run with ctx, so cancelling it also
// cancels a refresh in flight. A loop can be started only once; a stopped
// loop cannot be restarted.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped.Load() {
		return ErrStopped
	}
	if l.running {
		return ErrAlreadyStarted
	}

	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	l.running = true

	go l.run(ctx, l.quit, l.done)

	l.logger.Info("Sync loop started", zap.Duration("interval", l.interval))
	return nil
}

// Stop ends the polling schedule and returns without waiting. A refresh
// still in flight is left to finish; its result is dropped. The loop
// goroutine exits once that refresh returns.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopped.Store(true)
	l.running = false
	if l.quit == nil {
		return
	}
	close(l.quit)
	l.quit = nil
	l.logger.Info("Sync loop stopped")
}

// Done is closed when the loop goroutine has exited. It is nil before Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Loop) run(ctx context.Context, quit, done chan struct{}) {
	defer close(done)
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.refreshLogged(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			l.refreshLogged(ctx, "interval")
		case <-l.trigger:
			l.refreshLogged(ctx, "trigger")
		}
	}
}

func (l *Loop) refreshLogged(ctx context.Context, reason string) {
	err := l.Refresh(ctx)
	switch {
	case err == nil:
		l.logger.Debug("Refresh applied", zap.String("reason", reason))
	case errors.Is(err, ErrRefreshInFlight):
		l.logger.Debug("Refresh skipped, another is in flight", zap.String("reason", reason))
	case errors.Is(err, ErrStopped):
		l.logger.Debug("Refresh result dropped, loop stopped", zap.String("reason", reason))
	case ctx.Err() != nil:
		// shutting down
	default:
		l.logger.Warn("Refresh failed, keeping previous snapshot",
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// Trigger asks the running loop for one more refresh. Requests made while one
// is already pending collapse into it. Without a running loop it does nothing.
func (l *Loop) Trigger() {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()

	if !running {
		l.logger.Debug("Refresh trigger ignored, loop not running")
		return
	}

	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Refresh fetches catalog and orders concurrently and swaps both caches only
// when both fetches succeed. It returns ErrRefreshInFlight without fetching
// when another refresh is running.
func (l *Loop) Refresh(ctx context.Context) error {
	if l.stopped.Load() {
		return ErrStopped
	}
	if !l.busy.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer l.busy.Store(false)

	var (
		records []normalize.Record
		orders  []domain.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = l.source.FetchItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = l.source.FetchOrders(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		if l.stopped.Load() {
			return ErrStopped
		}
		if ctx.Err() == nil {
			l.recordFailure(err)
		}
		return err
	}

	if l.stopped.Load() {
		return ErrStopped
	}

	next := &Snapshot{
		Catalog:     normalize.Catalog(records),
		Orders:      orders,
		RefreshedAt: l.now(),
	}
	l.snapshot.Store(next)
	l.recordSuccess(next.RefreshedAt)
	return nil
}

// Snapshot returns the current snapshot. Callers must not modify its slices.
func (l *Loop) Snapshot() Snapshot {
	return *l.snapshot.Load()
}

// Catalog returns the cached catalog.
func (l *Loop) Catalog() []domain.Product {
	return l.snapshot.Load().Catalog
}

// Orders returns the cached orders in server order.
func (l *Loop) Orders() []domain.Order {
	return l.snapshot.Load().Orders
}

// Product looks up a catalog product by id in the current snapshot.
func (l *Loop) Product(id string) (domain.Product, bool) {
	if id == "" {
		return domain.Product{}, false
	}
	for _, p := range l.snapshot.Load().Catalog {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// Status reports the refresh history.
func (l *Loop) Status() Status {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()

	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	status := l.status
	status.Running = running
	return status
}

func (l *Loop) recordSuccess(at time.Time) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	l.status.LastSuccess = at
	l.status.ConsecutiveFailures = 0
	l.status.Refreshes++
}

func (l *Loop) recordFailure(err error) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	l.status.LastError = err.Error()
	l.status.LastErrorAt = l.now()
	l.status.ConsecutiveFailures++
}
