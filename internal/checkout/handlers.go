package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
)

// Backend is the storefront API surface the checkout needs.
type Backend interface {
	CreatePaymentIntent(ctx context.Context, amount domain.Money, currency string) (clientSecret string, err error)
	CreateOrder(ctx context.Context, token string, order OrderRequest) (orderID string, err error)
}

type IntentHandler struct {
	api     *apiclient.Client
	timeout time.Duration
}

func NewIntentHandler(api *apiclient.Client, timeout time.Duration) *IntentHandler {
	return &IntentHandler{
		api:     api,
		timeout: timeout,
	}
}

type OrderHandler struct {
	api     *apiclient.Client
	timeout time.Duration
}

// NewOrderHandler sends orders past the breaker: by the time an order is
// written the payment is already confirmed.
func NewOrderHandler(api *apiclient.Client, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		api:     api.WithoutBreaker(),
		timeout: timeout,
	}
}

type PaymentHandler struct {
	processor payment.Processor
	timeout   time.Duration
}

func NewPaymentHandler(processor payment.Processor, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		processor: processor,
		timeout:   timeout,
	}
}

func (h *PaymentHandler) confirm(ctx context.Context, req payment.ConfirmRequest) (payment.Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.processor.Confirm(ctx, req)
}

// APIBackend implements Backend over the REST API.
type APIBackend struct {
	intents *IntentHandler
	orders  *OrderHandler
}

func NewAPIBackend(intents *IntentHandler, orders *OrderHandler) *APIBackend {
	return &APIBackend{intents: intents, orders: orders}
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type intentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

func (b *APIBackend) CreatePaymentIntent(ctx context.Context, amount domain.Money, currency string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.intents.timeout)
	defer cancel()

	var resp intentResponse
	if err := b.intents.api.Post(ctx, "/create-payment-intent", intentRequest{Amount: int64(amount), Currency: currency}, &resp); err != nil {
		return "", err
	}
	if resp.ClientSecret == "" {
		return "", ErrMissingSecret
	}
	return resp.ClientSecret, nil
}

// OrderItem and OrderRequest are the backend's order body. Prices go out in
// major units as JSON numbers.
type OrderItem struct {
	Product  string      `json:"product"`
	Name     string      `json:"name"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
	Photo    string      `json:"photo"`
}

type OrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	OrderItems      []OrderItem            `json:"orderItems"`
	TotalPrice      json.Number            `json:"totalPrice"`
	PaymentID       string                 `json:"paymentId"`
}

func newOrderRequest(addr domain.ShippingAddress, lines []domain.CartLine, total domain.Money, paymentID string) OrderRequest {
	items := make([]OrderItem, len(lines))
	for i, l := range lines {
		items[i] = OrderItem{
			Product:  l.ProductID,
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    json.Number(l.UnitPrice.String()),
			Photo:    l.Photo,
		}
	}
	return OrderRequest{
		ShippingAddress: addr,
		OrderItems:      items,
		TotalPrice:      json.Number(total.String()),
		PaymentID:       paymentID,
	}
}

type orderResponse struct {
	ID    string `json:"_id"`
	Order struct {
		ID string `json:"_id"`
	} `json:"order"`
}

func (b *APIBackend) CreateOrder(ctx context.Context, token string, order OrderRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.orders.timeout)
	defer cancel()

	api := b.orders.api
	if token != "" {
		api = api.WithToken(token)
	}
	var resp orderResponse
	err := api.Post(ctx, "/orders", order, &resp)
	if errors.Is(err, apiclient.ErrDecode) {
		// stored, but the body carried no readable id
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if resp.ID != "" {
		return resp.ID, nil
	}
	return resp.Order.ID, nil
}
