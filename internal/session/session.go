// Package session wires the cart, the sync loop and the checkout orchestrator
// into one client session and keeps the state the presentation layer reads:
// the active view and pending notices.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-shop/internal/cart"
	"go-shop/internal/checkout"
	"go-shop/internal/domain"
	"go-shop/internal/syncloop"

	"go.uber.org/zap"
)

const maxNotices = 50

type View string

const (
	ViewShop   View = "shop"
	ViewOrders View = "orders"
)

var (
	ErrUnknownView          = errors.New("unknown view")
	ErrProductNotFound      = errors.New("product not found in catalog")
	ErrProductNotActionable = errors.New("product has no id and cannot be added")
)

// Remote is the catalog/order service as the session uses it.
type Remote interface {
	syncloop.Source
	checkout.Submitter
}

// breakerReporter is implemented by remotes guarded by a circuit breaker.
type breakerReporter interface {
	BreakerState() string
}

// Session is one user's client state for the lifetime of the process.
type Session struct {
	remote   Remote
	cart     *cart.Store
	loop     *syncloop.Loop
	checkout *checkout.Orchestrator
	logger   *zap.Logger

	mu      sync.Mutex
	view    View
	notices []checkout.Notice
}

// New creates a session polling remote every interval.
func New(remote Remote, interval time.Duration, logger *zap.Logger) *Session {
	s := &Session{
		remote: remote,
		cart:   cart.NewStore(),
		loop:   syncloop.New(remote, interval, logger),
		logger: logger.Named("session"),
		view:   ViewShop,
	}
	s.checkout = checkout.New(s.cart, remote, s.loop, s, logger)
	return s
}

// Start begins polling. Stop ends it.
func (s *Session) Start(ctx context.Context) error {
	return s.loop.Start(ctx)
}

func (s *Session) Stop() {
	s.loop.Stop()
}

// Refresh runs one refresh synchronously.
func (s *Session) Refresh(ctx context.Context) error {
	return s.loop.Refresh(ctx)
}

// TriggerRefresh asks the running loop for an extra refresh.
func (s *Session) TriggerRefresh() {
	s.loop.Trigger()
}

func (s *Session) SyncStatus() syncloop.Status {
	return s.loop.Status()
}

// RemoteState reports the remote's circuit breaker state, or "" when the
// remote has none.
func (s *Session) RemoteState() string {
	if r, ok := s.remote.(breakerReporter); ok {
		return r.BreakerState()
	}
	return ""
}

// Snapshot returns the cached catalog and orders with their refresh time.
func (s *Session) Snapshot() syncloop.Snapshot {
	return s.loop.Snapshot()
}

func (s *Session) Catalog() []domain.Product {
	return s.loop.Catalog()
}

// Orders returns the cached orders in server order.
func (s *Session) Orders() []domain.Order {
	return s.loop.Orders()
}

// AddToCart adds one unit of the catalog product itemID.
func (s *Session) AddToCart(itemID string) (domain.CartLine, error) {
	if itemID == "" {
		return domain.CartLine{}, ErrProductNotActionable
	}
	product, ok := s.loop.Product(itemID)
	if !ok {
		return domain.CartLine{}, ErrProductNotFound
	}
	line, ok := s.cart.Add(product)
	if !ok {
		return domain.CartLine{}, ErrProductNotActionable
	}
	return line, nil
}

// RemoveFromCart drops the line for itemID, if any.
func (s *Session) RemoveFromCart(itemID string) {
	s.cart.Remove(itemID)
}

// Cart exposes the cart store for reads.
func (s *Session) Cart() *cart.Store {
	return s.cart
}

// IsStale reports whether a cart line refers to a product missing from the
// current catalog. Stale lines stay in the cart and are still submitted.
func (s *Session) IsStale(itemID string) bool {
	_, ok := s.loop.Product(itemID)
	return !ok
}

// Checkout submits the cart.
func (s *Session) Checkout(ctx context.Context) (checkout.Result, error) {
	return s.checkout.Checkout(ctx)
}

// CheckoutEnabled reports whether the checkout control is enabled.
func (s *Session) CheckoutEnabled() bool {
	return s.checkout.Enabled()
}

func (s *Session) CheckoutState() checkout.State {
	return s.checkout.State()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Session) SetView(v View) error {
	if v != ViewShop && v != ViewOrders {
		return ErrUnknownView
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
	return nil
}

// ShowOrders switches to the orders view.
func (s *Session) ShowOrders() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = ViewOrders
}

// Notify queues a user-visible notice, dropping the oldest past maxNotices.
func (s *Session) Notify(notice checkout.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notices = append(s.notices, notice)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.logger.Info("Notice queued", zap.String("level", notice.Level), zap.String("message", notice.Message))
}

// DrainNotices returns and forgets the queued notices.
func (s *Session) DrainNotices() []checkout.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	notices := s.notices
	s.notices = nil
	return notices
}
