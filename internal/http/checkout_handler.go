package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
)

type CheckoutHandler struct {
	sessions CartSessions
	checkout checkout.CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(sessions CartSessions, svc checkout.CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		checkout: svc,
		timeout:  timeout,
	}
}

type CheckoutRequestDTO struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   payment.Method         `json:"payment_method"`
}

type CheckoutResponseDTO struct {
	CheckoutID  string        `json:"checkout_id"`
	OrderID     string        `json:"order_id,omitempty"`
	PaymentID   string        `json:"payment_id"`
	Status      string        `json:"status"`
	Items       []CartItemDTO `json:"items"`
	Subtotal    json.Number   `json:"subtotal"`
	Shipping    json.Number   `json:"shipping"`
	Total       json.Number   `json:"total"`
	CartChanged bool          `json:"cart_changed,omitempty"`
}

// POST /api/v1/checkout
//
// A checkout runs to completion once accepted: it is detached from the client
// connection and bounded by its own timeout.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PaymentMethod.Token == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_method", "payment_method.token is required")
		return
	}

	sessionID := getSessionID(r.Context())
	store, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		handleError(w, err)
		return
	}

	receipt, err := h.checkout.Checkout(ctx, store, checkout.Request{
		SessionID: sessionID,
		Token:     bearerToken(r),
		Address:   req.ShippingAddress,
		Method:    req.PaymentMethod,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCheckoutResponse(sessionID, receipt))
}

func toCheckoutResponse(sessionID string, rc *checkout.Receipt) CheckoutResponseDTO {
	c := toCartResponse(sessionID, rc.Lines)
	return CheckoutResponseDTO{
		CheckoutID:  rc.CheckoutID,
		OrderID:     rc.OrderID,
		PaymentID:   rc.PaymentID,
		Status:      rc.Status.String(),
		Items:       c.Items,
		Subtotal:    moneyJSON(rc.Subtotal),
		Shipping:    moneyJSON(rc.Shipping),
		Total:       moneyJSON(rc.Total),
		CartChanged: rc.CartChanged,
	}
}

// bearerToken returns the token of an "Authorization: Bearer" header, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
