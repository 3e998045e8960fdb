// Package shopapi is the HTTP client for the remote catalog/order service.
package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-shop/internal/config"
	"go-shop/internal/domain"
	"go-shop/internal/normalize"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const maxBodyBytes = 10 << 20

const (
	itemsPath  = "/items"
	ordersPath = "/orders"
)

// Client talks to GET /items, GET /orders and POST /orders. All calls share
// one circuit breaker; rejected requests (4xx) do not count against it.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewClient creates a Client for cfg.BaseURL. A BreakerMaxFailures of zero or
// less disables tripping.
func NewClient(cfg config.RemoteConfig, logger *zap.Logger) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewClientWithHTTP is NewClient with a caller-supplied http.Client.
func NewClientWithHTTP(cfg config.RemoteConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	logger = logger.Named("shopapi")

	settings := gobreaker.Settings{
		Name:        "remote-shop",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.BreakerMaxFailures > 0 && counts.ConsecutiveFailures >= uint32(cfg.BreakerMaxFailures)
		},
		IsSuccessful: breakerSuccess,
		IsExcluded:   breakerExcluded,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}
}

// breakerSuccess counts client-side rejections as healthy calls.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.ServerFault()
	}
	return false
}

// breakerExcluded leaves calls abandoned by the caller out of the counts.
// They say nothing about the remote service's health.
func breakerExcluded(err error) bool {
	return errors.Is(err, context.Canceled)
}

// BreakerState returns the breaker state name ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// FetchItems returns the raw catalog records. A null body yields no records.
func (c *Client) FetchItems(ctx context.Context) ([]normalize.Record, error) {
	body, err := c.do(ctx, http.MethodGet, itemsPath, nil)
	if err != nil {
		return nil, err
	}

	var records []normalize.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrMalformedResponse, itemsPath, err)
	}
	return records, nil
}

// FetchOrders returns the order collection as the service describes it.
// Records that cannot be decoded are logged and left out, so one bad record
// does not hide the rest.
func (c *Client) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	body, err := c.do(ctx, http.MethodGet, ordersPath, nil)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrMalformedResponse, ordersPath, err)
	}

	orders := make([]domain.Order, 0, len(records))
	for i, raw := range records {
		var order domain.Order
		if err := json.Unmarshal(raw, &order); err != nil {
			c.logger.Warn("Skipping undecodable order record",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// CreateOrder submits req. Any 2xx answer means the order was created.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) error {
	_, err := c.do(ctx, http.MethodPost, ordersPath, req)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read body: %w", method, path, err)
	}

	c.logger.Debug("Remote call completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}
