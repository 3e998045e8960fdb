package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go-shop/internal/checkout"
	"go-shop/internal/domain"
	"go-shop/internal/normalize"
	"go-shop/internal/session"
	"go-shop/internal/shopapi"

	"github.com/go-chi/chi/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockRemote is an in-memory catalog/order service.
type mockRemote struct {
	mu        sync.Mutex
	items     string
	orders    []domain.Order
	createErr error
	created   []domain.OrderRequest
	block     chan struct{}
}

func (m *mockRemote) FetchItems(ctx context.Context) ([]normalize.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []normalize.Record
	if err := json.Unmarshal([]byte(m.items), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (m *mockRemote) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Order(nil), m.orders...), nil
}

func (m *mockRemote) CreateOrder(ctx context.Context, req domain.OrderRequest) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	return m.createErr
}

func setupSessionAPI(t *testing.T, remote *mockRemote) (*chi.Mux, *session.Session) {
	t.Helper()
	sess := session.New(remote, time.Hour, zap.NewNop())
	require.NoError(t, sess.Refresh(context.Background()))

	router := chi.NewRouter()
	NewSessionHandler(sess, zap.NewNop()).RegisterRoutes(router)
	return router, sess
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) CartView {
	t.Helper()
	var cart CartView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	return cart
}

const catalogJSON = `[
	{"id":"mouse-0001","name":"Mouse","price":10},
	{"ID":"keyboard-02","Name":"Keyboard","Price":"25.50"},
	{"name":"Ghost","price":3}
]`

func TestGetCatalog_FormatsAndFlags(t *testing.T) {
	router, _ := setupSessionAPI(t, &mockRemote{items: catalogJSON})

	w := doJSON(t, router, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var catalog []ProductView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))
	require.Len(t, catalog, 3)

	assert.Equal(t, "R$ 10.00", catalog[0].Price)
	assert.True(t, catalog[0].Actionable)
	assert.Equal(t, "Keyboard", catalog[1].Name)
	assert.Equal(t, "R$ 25.50", catalog[1].Price)
	assert.Equal(t, "", catalog[2].ID)
	assert.False(t, catalog[2].Actionable)
}

func TestAddItem_Scenarios(t *testing.T) {
	router, _ := setupSessionAPI(t, &mockRemote{items: catalogJSON})

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "known item", body: AddItemRequest{ItemID: "mouse-0001"}, status: http.StatusOK},
		{name: "unknown item", body: AddItemRequest{ItemID: "nope"}, status: http.StatusNotFound},
		{name: "missing id", body: map[string]string{}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/cart/items", tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCart_AddTwiceThenRemove(t *testing.T) {
	router, _ := setupSessionAPI(t, &mockRemote{items: catalogJSON})

	doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})
	w := doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})
	require.Equal(t, http.StatusOK, w.Code)

	cart := decodeCart(t, w)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
	assert.Equal(t, "mouse-00", cart.Lines[0].ShortID)
	assert.Equal(t, "R$ 20.00", cart.Lines[0].Subtotal)
	assert.Equal(t, "R$ 20.00", cart.Total)
	assert.Equal(t, 1, cart.Count)
	assert.True(t, cart.CheckoutEnabled)

	w = doJSON(t, router, http.MethodDelete, "/api/cart/items/mouse-0001", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/api/cart/items/mouse-0001", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	cart = decodeCart(t, doJSON(t, router, http.MethodGet, "/api/cart", nil))
	assert.Empty(t, cart.Lines)
	assert.Equal(t, "R$ 0.00", cart.Total)
}

func TestCart_StaleLineKept(t *testing.T) {
	remote := &mockRemote{items: catalogJSON}
	router, sess := setupSessionAPI(t, remote)

	doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})

	remote.mu.Lock()
	remote.items = `[{"id":"keyboard-02","name":"Keyboard","price":25.5}]`
	remote.mu.Unlock()
	require.NoError(t, sess.Refresh(context.Background()))

	cart := decodeCart(t, doJSON(t, router, http.MethodGet, "/api/cart", nil))
	require.Len(t, cart.Lines, 1)
	assert.True(t, cart.Lines[0].Stale)
	assert.Equal(t, "R$ 10.00", cart.Total)
}

func TestCheckout_EmptyCartSkipped(t *testing.T) {
	remote := &mockRemote{items: catalogJSON}
	router, _ := setupSessionAPI(t, remote)

	w := doJSON(t, router, http.MethodPost, "/api/checkout", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, remote.created)
}

func TestCheckout_Success(t *testing.T) {
	remote := &mockRemote{items: catalogJSON}
	router, sess := setupSessionAPI(t, remote)

	doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})
	doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})

	w := doJSON(t, router, http.MethodPost, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, session.ViewOrders, resp.View)
	assert.Empty(t, resp.Cart.Lines)
	assert.Equal(t, checkout.Succeeded, resp.Result.Outcome)

	require.Len(t, remote.created, 1)
	assert.Equal(t, []domain.OrderRequestItem{{ItemID: "mouse-0001", Quantity: 2}}, remote.created[0].Items)
	assert.Equal(t, session.ViewOrders, sess.View())
}

func TestCheckout_FailureKeepsCart(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{name: "rejected", err: &shopapi.StatusError{Method: "POST", Path: "/orders", StatusCode: 500}, kind: "rejected"},
		{name: "transport", err: errors.New("connection refused"), kind: "transport_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &mockRemote{items: catalogJSON, createErr: tt.err}
			router, _ := setupSessionAPI(t, remote)

			doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})

			w := doJSON(t, router, http.MethodPost, "/api/checkout", nil)
			require.Equal(t, http.StatusBadGateway, w.Code)

			var resp struct {
				Error struct {
					Message string                 `json:"message"`
					Details map[string]interface{} `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, checkout.FailureMessage, resp.Error.Message)
			assert.Equal(t, tt.kind, resp.Error.Details["kind"])

			cart := decodeCart(t, doJSON(t, router, http.MethodGet, "/api/cart", nil))
			require.Len(t, cart.Lines, 1)
			assert.True(t, cart.CheckoutEnabled)

			var notices []checkout.Notice
			require.NoError(t, json.Unmarshal(doJSON(t, router, http.MethodGet, "/api/notices", nil).Body.Bytes(), &notices))
			require.Len(t, notices, 1)
			assert.Equal(t, checkout.FailureMessage, notices[0].Message)

			require.NoError(t, json.Unmarshal(doJSON(t, router, http.MethodGet, "/api/notices", nil).Body.Bytes(), &notices))
			assert.Empty(t, notices)
		})
	}
}

func TestCheckout_ConcurrentSubmitConflicts(t *testing.T) {
	remote := &mockRemote{items: catalogJSON, block: make(chan struct{})}
	router, sess := setupSessionAPI(t, remote)

	doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})

	first := make(chan int, 1)
	go func() {
		first <- doJSON(t, router, http.MethodPost, "/api/checkout", nil).Code
	}()

	require.Eventually(t, func() bool { return !sess.CheckoutEnabled() }, time.Second, 5*time.Millisecond)

	cart := decodeCart(t, doJSON(t, router, http.MethodGet, "/api/cart", nil))
	assert.False(t, cart.CheckoutEnabled)
	assert.Equal(t, checkout.Submitting, cart.CheckoutState)

	w := doJSON(t, router, http.MethodPost, "/api/checkout", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(remote.block)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Len(t, remote.created, 1)
}

func TestCheckout_ClientDisconnectStillCompletes(t *testing.T) {
	remote := &mockRemote{items: catalogJSON, block: make(chan struct{})}
	router, sess := setupSessionAPI(t, remote)

	doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: "mouse-0001"})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return !sess.CheckoutEnabled() }, time.Second, 5*time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(remote.block)
	<-done

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, remote.created, 1)
	assert.True(t, sess.Cart().IsEmpty())
	assert.Equal(t, session.ViewOrders, sess.View())
	assert.Empty(t, sess.DrainNotices())
}

func TestGetOrders_NewestFirstWithTones(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	remote := &mockRemote{
		items: `[]`,
		orders: []domain.Order{
			{ID: "o-1", Status: "paid", CreatedAt: base, Total: decimal.NewFromInt(10),
				Items: []domain.OrderItem{{ItemID: "mouse-0001", Quantity: 1, Subtotal: decimal.NewFromInt(10)}}},
			{ID: "o-2", Status: "pending", CreatedAt: base.Add(time.Minute), Total: decimal.NewFromInt(5)},
			{ID: "o-3", Status: "shipped", CreatedAt: base.Add(2 * time.Minute), Total: decimal.NewFromInt(7)},
		},
	}
	router, _ := setupSessionAPI(t, remote)

	var orders []OrderView
	require.NoError(t, json.Unmarshal(doJSON(t, router, http.MethodGet, "/api/orders", nil).Body.Bytes(), &orders))
	require.Len(t, orders, 3)

	assert.Equal(t, "o-3", orders[0].ID)
	assert.Equal(t, "neutral", string(orders[0].Tone))
	assert.Equal(t, "warning", string(orders[1].Tone))
	assert.Equal(t, "positive", string(orders[2].Tone))
	assert.Equal(t, "mouse-", orders[2].Items[0].ShortID)
	assert.Equal(t, "R$ 10.00", orders[2].Total)
}

func TestView_GetAndSet(t *testing.T) {
	router, _ := setupSessionAPI(t, &mockRemote{items: `[]`})

	var view ViewResponse
	require.NoError(t, json.Unmarshal(doJSON(t, router, http.MethodGet, "/api/view", nil).Body.Bytes(), &view))
	assert.Equal(t, session.ViewShop, view.View)

	w := doJSON(t, router, http.MethodPut, "/api/view", ViewRequest{View: "orders"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, session.ViewOrders, view.View)

	w = doJSON(t, router, http.MethodPut, "/api/view", ViewRequest{View: "admin"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/view", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSync_StatusAndTrigger(t *testing.T) {
	router, _ := setupSessionAPI(t, &mockRemote{items: catalogJSON})

	var resp SyncResponse
	w := doJSON(t, router, http.MethodGet, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Status.Refreshes)
	assert.False(t, resp.RefreshedAt.IsZero())
	assert.Empty(t, resp.Breaker)

	w = doJSON(t, router, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

// The cart total shown by the API always equals the sum of the line subtotals.
func TestProperty_CartTotalMatchesLines(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total is the sum of line subtotals", prop.ForAll(
		func(picks []int) bool {
			router, _ := setupSessionAPI(t, &mockRemote{items: catalogJSON})
			ids := []string{"mouse-0001", "keyboard-02"}

			for _, p := range picks {
				doJSON(t, router, http.MethodPost, "/api/cart/items", AddItemRequest{ItemID: ids[p]})
			}

			cart := decodeCart(t, doJSON(t, router, http.MethodGet, "/api/cart", nil))
			sum := decimal.Zero
			units := 0
			for _, line := range cart.Lines {
				price := decimal.RequireFromString(line.Price[len("R$ "):])
				sum = sum.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
				units += line.Quantity
			}
			return sum.Equal(cart.Amount) && units == len(picks)
		},
		gen.SliceOf(gen.IntRange(0, 1)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
