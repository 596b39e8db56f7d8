package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CartSessions hands out the live cart for a session id.
type CartSessions interface {
	Open(ctx context.Context, sessionID string) (*cart.Store, error)
	// Discard forgets the session, persisted snapshot included.
	Discard(ctx context.Context, sessionID string) error
}

type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type CartHandler struct {
	sessions CartSessions
	products ProductSource
	timeout  time.Duration
}

func NewCartHandler(sessions CartSessions, products ProductSource, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		products: products,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequestDTO takes the quantity as typed by the user: a
// number or a string such as "3" or "2abc".
type UpdateQuantityRequestDTO struct {
	Quantity json.RawMessage `json:"quantity"`
}

type CartItemDTO struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	Photo     string      `json:"photo,omitempty"`
	UnitPrice json.Number `json:"unit_price"`
	Quantity  int         `json:"quantity"`
	Subtotal  json.Number `json:"subtotal"`
}

type CartResponseDTO struct {
	SessionID string        `json:"session_id"`
	Items     []CartItemDTO `json:"items"`
	ItemCount int           `json:"item_count"`
	Total     json.Number   `json:"total"`
}

func moneyJSON(m domain.Money) json.Number {
	return json.Number(m.String())
}

func toCartResponse(sessionID string, lines []domain.CartLine) CartResponseDTO {
	resp := CartResponseDTO{
		SessionID: sessionID,
		Items:     make([]CartItemDTO, 0, len(lines)),
		Total:     moneyJSON(domain.SumLines(lines)),
	}
	for _, l := range lines {
		resp.Items = append(resp.Items, CartItemDTO{
			ProductID: l.ProductID,
			Name:      l.Name,
			Photo:     l.Photo,
			UnitPrice: moneyJSON(l.UnitPrice),
			Quantity:  l.Quantity,
			Subtotal:  moneyJSON(l.Subtotal()),
		})
		resp.ItemCount += l.Quantity
	}
	return resp
}

func (h *CartHandler) open(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Store, string, bool) {
	sessionID := getSessionID(r.Context())
	store, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		handleError(w, err)
		return nil, "", false
	}
	return store, sessionID, true
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, sessionID, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(sessionID, store.Lines()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}
	if req.Quantity > cart.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", fmt.Sprintf("quantity must not exceed %d", cart.MaxQuantity))
		return
	}

	store, sessionID, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	// price always comes from the catalog
	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}
	store.AddItem(product, req.Quantity)

	respondJSON(w, http.StatusCreated, toCartResponse(sessionID, store.Lines()))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, sessionID, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	store.SetQuantityInput(productID, rawQuantity(req.Quantity))

	respondJSON(w, http.StatusOK, toCartResponse(sessionID, store.Lines()))
}

// rawQuantity returns the text of a JSON number or string.
func rawQuantity(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	store, sessionID, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	store.RemoveItem(productID)

	respondJSON(w, http.StatusOK, toCartResponse(sessionID, store.Lines()))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, sessionID, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	store.Clear()

	respondJSON(w, http.StatusOK, toCartResponse(sessionID, store.Lines()))
}

// DELETE /api/v1/cart/session
//
// Ends the session: the cart is dropped and its snapshot deleted. Clients
// call it on logout.
func (h *CartHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.sessions.Discard(ctx, getSessionID(r.Context())); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
