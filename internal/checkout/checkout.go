// Package checkout turns the cart into an order submission and runs the
// submission lifecycle: Idle -> Submitting -> {Succeeded, Failed} -> Idle.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-shop/internal/domain"
	"go-shop/internal/shopapi"

	"go.uber.org/zap"
)

// FailureMessage is the notice shown for any failed submission.
const FailureMessage = "Could not place your order. Your cart was kept, please try again."

var ErrSubmissionInFlight = errors.New("checkout already in progress")

type State int32

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{Idle, Submitting, Succeeded, Failed} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown checkout state %q", text)
}

// Kind separates failures that never reached the service from those it refused.
// Both are handled identically; the kind is kept for logs and callers.
type Kind int

const (
	TransportFailure Kind = iota
	Rejected
)

func (k Kind) String() string {
	if k == Rejected {
		return "rejected"
	}
	return "transport_failure"
}

// Error is returned by Checkout when the submission fails.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("checkout %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cart is the part of the cart store checkout needs.
type Cart interface {
	IsEmpty() bool
	Payload() domain.OrderRequest
	Subtract(req domain.OrderRequest)
}

// Submitter creates orders on the remote service.
type Submitter interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) error
}

// Refresher schedules a resync of catalog and orders.
type Refresher interface {
	Trigger()
}

// Presenter receives the user-facing effects of a checkout.
type Presenter interface {
	ShowOrders()
	Notify(notice Notice)
}

// Notice is a user-visible message.
type Notice struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Result describes a finished Checkout call.
type Result struct {
	Skipped bool                `json:"skipped"`
	Outcome State               `json:"outcome"`
	Request domain.OrderRequest `json:"request"`
	At      time.Time           `json:"at"`
}

// Orchestrator runs checkouts one at a time.
type Orchestrator struct {
	cart      Cart
	submitter Submitter
	refresher Refresher
	presenter Presenter
	logger    *zap.Logger
	now       func() time.Time

	state atomic.Int32

	mu   sync.Mutex
	last *Result
}

func New(cart Cart, submitter Submitter, refresher Refresher, presenter Presenter, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cart:      cart,
		submitter: submitter,
		refresher: refresher,
		presenter: presenter,
		logger:    logger.Named("checkout"),
		now:       time.Now,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Enabled reports whether the checkout control accepts a new submission.
func (o *Orchestrator) Enabled() bool {
	return o.State() == Idle
}

// LastResult returns the most recent finished, non-skipped checkout.
func (o *Orchestrator) LastResult() (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Result{}, false
	}
	return *o.last, true
}

// Checkout submits the cart. An empty cart is ignored without any state
// change. While a submission is running further calls fail with
// ErrSubmissionInFlight. On success the submitted quantities leave the cart,
// the orders view is shown and a refresh is triggered, in that order. Units
// added while the order was in flight stay in the cart. On failure the cart is
// kept, a notice is shown and an *Error is returned.
func (o *Orchestrator) Checkout(ctx context.Context) (Result, error) {
	if o.cart.IsEmpty() {
		return Result{Skipped: true}, nil
	}
	if !o.state.CompareAndSwap(int32(Idle), int32(Submitting)) {
		return Result{}, ErrSubmissionInFlight
	}
	defer o.state.Store(int32(Idle))

	req := o.cart.Payload()
	if len(req.Items) == 0 {
		return Result{Skipped: true}, nil
	}

	o.logger.Info("Submitting order", zap.Int("lines", len(req.Items)))

	err := o.submitter.CreateOrder(ctx, req)
	result := Result{Request: req, At: o.now()}

	if err != nil {
		o.state.Store(int32(Failed))
		result.Outcome = Failed

		kind := TransportFailure
		if shopapi.IsRejected(err) {
			kind = Rejected
		}
		o.logger.Warn("Order submission failed, cart kept",
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		o.presenter.Notify(Notice{Level: "error", Message: FailureMessage, At: result.At})
		o.remember(result)
		return result, &Error{Kind: kind, Err: err}
	}

	o.state.Store(int32(Succeeded))
	result.Outcome = Succeeded

	o.cart.Subtract(req)
	o.presenter.ShowOrders()
	o.refresher.Trigger()

	o.logger.Info("Order submitted", zap.Int("lines", len(req.Items)))
	o.remember(result)
	return result, nil
}

func (o *Orchestrator) remember(result Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = &result
}
