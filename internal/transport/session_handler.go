package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-shop/internal/checkout"
	"go-shop/internal/display"
	"go-shop/internal/domain"
	"go-shop/internal/middleware"
	"go-shop/internal/session"
	"go-shop/internal/syncloop"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddItemRequest represents the add-to-cart request payload
type AddItemRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

// ViewRequest represents the view switch request payload
type ViewRequest struct {
	View string `json:"view" validate:"required"`
}

// ProductView is a catalog entry as shown in the shop view.
type ProductView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      string          `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Actionable bool            `json:"actionable"`
}

// CartLineView is one cart line. Stale lines refer to items no longer in the
// catalog; they are still submitted at checkout.
type CartLineView struct {
	ItemID   string `json:"item_id"`
	ShortID  string `json:"short_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
	Stale    bool   `json:"stale"`
}

type CartView struct {
	Lines           []CartLineView  `json:"lines"`
	Count           int             `json:"count"`
	Total           string          `json:"total"`
	Amount          decimal.Decimal `json:"amount"`
	CheckoutEnabled bool            `json:"checkout_enabled"`
	CheckoutState   checkout.State  `json:"checkout_state"`
}

type OrderItemView struct {
	ItemID   string `json:"item_id"`
	ShortID  string `json:"short_id"`
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

// OrderView is an order as shown in the orders view.
type OrderView struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Tone      display.Tone    `json:"tone"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderItemView `json:"items"`
	Total     string          `json:"total"`
}

type ViewResponse struct {
	View session.View `json:"view"`
}

// CheckoutResponse is returned for a submitted order.
type CheckoutResponse struct {
	Result checkout.Result `json:"result"`
	View   session.View    `json:"view"`
	Cart   CartView        `json:"cart"`
}

type SyncResponse struct {
	Status      syncloop.Status `json:"status"`
	RefreshedAt time.Time       `json:"refreshed_at"`
	Breaker     string          `json:"breaker,omitempty"`
}

// SessionHandler serves the local session API.
type SessionHandler struct {
	session *session.Session
	logger  *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sess *session.Session, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		session: sess,
		logger:  logger.Named("session_api"),
	}
}

// RegisterRoutes registers all session routes
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.GetCatalog)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddItem)
		r.Delete("/cart/items/{itemID}", h.RemoveItem)
		r.Post("/checkout", h.Checkout)

		r.Get("/orders", h.GetOrders)

		r.Get("/view", h.GetView)
		r.Put("/view", h.SetView)

		r.Get("/notices", h.DrainNotices)

		r.Get("/sync", h.GetSync)
		r.Post("/sync", h.TriggerSync)
	})
}

// GetCatalog returns the cached catalog.
func (h *SessionHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := h.session.Catalog()

	views := make([]ProductView, 0, len(catalog))
	for _, p := range catalog {
		views = append(views, ProductView{
			ID:         p.ID,
			Name:       p.Name,
			Price:      display.Money(p.Price),
			Amount:     p.Price,
			Actionable: p.Actionable(),
		})
	}

	middleware.RespondWithJSON(w, http.StatusOK, views)
}

func (h *SessionHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.cartView())
}

// AddItem adds one unit of a catalog product to the cart.
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Add to cart validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	line, err := h.session.AddToCart(req.ItemID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "product not found in catalog")
		case errors.Is(err, session.ErrProductNotActionable):
			middleware.RespondWithError(w, http.StatusUnprocessableEntity, "product cannot be added to the cart")
		default:
			h.logger.Error("Add to cart failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add item")
		}
		return
	}

	h.logger.Debug("Item added to cart", zap.String("item_id", line.ItemID), zap.Int("quantity", line.Quantity))
	middleware.RespondWithJSON(w, http.StatusOK, h.cartView())
}

// RemoveItem removes a whole cart line. Unknown ids are not an error.
func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.session.RemoveFromCart(chi.URLParam(r, "itemID"))
	w.WriteHeader(http.StatusNoContent)
}

// Checkout submits the cart as an order. The submission outlives the
// request: once sent, its outcome is applied even if the caller goes away.
func (h *SessionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	result, err := h.session.Checkout(context.WithoutCancel(r.Context()))
	if err != nil {
		var checkoutErr *checkout.Error
		switch {
		case errors.Is(err, checkout.ErrSubmissionInFlight):
			middleware.RespondWithError(w, http.StatusConflict, "an order is already being submitted")
		case errors.As(err, &checkoutErr):
			middleware.RespondWithErrorDetails(w, http.StatusBadGateway, checkout.FailureMessage, map[string]interface{}{
				"kind": checkoutErr.Kind.String(),
			})
		default:
			h.logger.Error("Checkout failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	if result.Skipped {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CheckoutResponse{
		Result: result,
		View:   h.session.View(),
		Cart:   h.cartView(),
	})
}

// GetOrders returns the cached orders, newest first.
func (h *SessionHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders := display.NewestFirst(h.session.Orders())

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}

	middleware.RespondWithJSON(w, http.StatusOK, views)
}

func (h *SessionHandler) GetView(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, ViewResponse{View: h.session.View()})
}

func (h *SessionHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.session.SetView(session.View(req.View)); err != nil {
		middleware.RespondWithErrorDetails(w, http.StatusUnprocessableEntity, "unknown view", map[string]interface{}{
			"allowed": []session.View{session.ViewShop, session.ViewOrders},
		})
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ViewResponse{View: h.session.View()})
}

// DrainNotices returns the pending notices and forgets them.
func (h *SessionHandler) DrainNotices(w http.ResponseWriter, r *http.Request) {
	notices := h.session.DrainNotices()
	if notices == nil {
		notices = []checkout.Notice{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, notices)
}

func (h *SessionHandler) GetSync(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, SyncResponse{
		Status:      h.session.SyncStatus(),
		RefreshedAt: h.session.Snapshot().RefreshedAt,
		Breaker:     h.session.RemoteState(),
	})
}

// TriggerSync asks the loop for a refresh and returns immediately.
func (h *SessionHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.session.TriggerRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func (h *SessionHandler) cartView() CartView {
	store := h.session.Cart()
	lines := store.Lines()

	views := make([]CartLineView, 0, len(lines))
	for _, line := range lines {
		views = append(views, CartLineView{
			ItemID:   line.ItemID,
			ShortID:  display.ShortID(line.ItemID, display.CartIDLength),
			Name:     line.Name,
			Price:    display.Money(line.Price),
			Quantity: line.Quantity,
			Subtotal: display.Money(line.Subtotal()),
			Stale:    h.session.IsStale(line.ItemID),
		})
	}

	total := store.Total()
	return CartView{
		Lines:           views,
		Count:           len(views),
		Total:           display.Money(total),
		Amount:          total,
		CheckoutEnabled: h.session.CheckoutEnabled(),
		CheckoutState:   h.session.CheckoutState(),
	}
}

func orderView(o domain.Order) OrderView {
	items := make([]OrderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemView{
			ItemID:   item.ItemID,
			ShortID:  display.ShortID(item.ItemID, display.OrderIDLength),
			Quantity: item.Quantity,
			Subtotal: display.Money(item.Subtotal),
		})
	}

	return OrderView{
		ID:        o.ID,
		Status:    o.Status,
		Tone:      display.StatusTone(o.Status),
		CreatedAt: o.CreatedAt,
		Items:     items,
		Total:     display.Money(o.Total),
	}
}
