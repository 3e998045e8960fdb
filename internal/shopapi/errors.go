package shopapi

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned while the circuit breaker refuses calls.
	ErrUnavailable = errors.New("remote service unavailable")
	// ErrMalformedResponse is returned when a success body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is a non-success HTTP answer from the remote service.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// ServerFault reports whether the status points at the service rather than the request.
func (e *StatusError) ServerFault() bool {
	return e.StatusCode >= 500
}

// IsRejected reports whether err is the service answering with a non-success status,
// as opposed to the request never completing.
func IsRejected(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}
