package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/journal"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Journal records checkout events for the outbox publisher and for
// reconciling payments that have no order.
type Journal interface {
	Append(ctx context.Context, aggregateID, eventType string, payload []byte) (int64, error)
}

type Settings struct {
	Currency string
	// ShippingFee is charged unless the subtotal exceeds
	// FreeShippingThreshold. A zero fee disables shipping charges.
	ShippingFee           domain.Money
	FreeShippingThreshold domain.Money
	// JournalTimeout bounds each journal write.
	JournalTimeout time.Duration
}

func (s Settings) ShippingFor(subtotal domain.Money) domain.Money {
	if s.ShippingFee <= 0 || subtotal > s.FreeShippingThreshold {
		return 0
	}
	return s.ShippingFee
}

type Request struct {
	SessionID string
	// Token is the customer's bearer token, empty for guest checkout.
	Token   string
	Address domain.ShippingAddress
	Method  payment.Method
}

type Receipt struct {
	CheckoutID string
	OrderID    string
	PaymentID  string
	Lines      []domain.CartLine
	Subtotal   domain.Money
	Shipping   domain.Money
	Total      domain.Money
	Status     domain.CheckoutStatus
	// CartChanged is set when the cart was edited while payment was in
	// flight; the order holds the lines that were paid for and the newer
	// cart is kept.
	CartChanged bool
}

type CheckoutService interface {
	Checkout(ctx context.Context, store *cart.Store, req Request) (*Receipt, error)
}

type CheckoutServiceImpl struct {
	backend  Backend
	payment  *PaymentHandler
	journal  Journal
	log      *zap.Logger
	metrics  *metrics.Registry
	settings Settings
	now      func() time.Time
	inFlight sync.Map // session id (or *cart.Store) -> struct{}
}

// NewCheckoutService wires the orchestrator. journal may be nil.
func NewCheckoutService(backend Backend, pay *PaymentHandler, j Journal, log *zap.Logger, m *metrics.Registry, settings Settings) *CheckoutServiceImpl {
	if settings.Currency == "" {
		settings.Currency = "usd"
	}
	if settings.JournalTimeout <= 0 {
		settings.JournalTimeout = 2 * time.Second
	}
	return &CheckoutServiceImpl{
		backend:  backend,
		payment:  pay,
		journal:  j,
		log:      log,
		metrics:  m,
		settings: settings,
		now:      time.Now,
	}
}

// Checkout runs intent, confirm and order creation in that order. The cart is
// cleared only after the order is stored; every failure leaves it intact.
func (s *CheckoutServiceImpl) Checkout(ctx context.Context, store *cart.Store, req Request) (*Receipt, error) {
	start := s.now()
	// keyed by session so an evicted and reopened cart is still guarded
	var key any = req.SessionID
	if req.SessionID == "" {
		key = store
	}
	if _, busy := s.inFlight.LoadOrStore(key, struct{}{}); busy {
		s.metrics.CheckoutFinished("in_progress", 0)
		return nil, ErrCheckoutInProgress
	}
	defer s.inFlight.Delete(key)

	receipt, err := s.run(ctx, store, req)
	s.metrics.CheckoutFinished(outcome(err), s.now().Sub(start).Seconds())
	return receipt, err
}

func (s *CheckoutServiceImpl) run(ctx context.Context, store *cart.Store, req Request) (*Receipt, error) {
	lines, version := store.Snapshot()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	addr := req.Address.Normalize()
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	subtotal := domain.SumLines(lines)
	shipping := s.settings.ShippingFor(subtotal)
	r := &Receipt{
		CheckoutID: uuid.NewString(),
		Lines:      lines,
		Subtotal:   subtotal,
		Shipping:   shipping,
		Total:      subtotal + shipping,
		Status:     domain.CheckoutStatusInitiated,
	}
	log := logger.WithTrace(ctx, s.log).With(
		zap.String("checkout_id", r.CheckoutID),
		zap.String("session_id", req.SessionID))

	// step 1: payment intent
	clientSecret, err := s.backend.CreatePaymentIntent(ctx, r.Total, s.settings.Currency)
	if err != nil {
		s.fail(r, log)
		return nil, &Error{Step: StepAuthorize, Kind: ErrAuthorizationFailed, Err: err}
	}
	if err := advance(r, domain.CheckoutStatusPaymentAuthorized); err != nil {
		return nil, err
	}

	// step 2: card confirmation
	conf, err := s.payment.confirm(ctx, payment.ConfirmRequest{
		ClientSecret: clientSecret,
		Method:       req.Method,
		Billing:      payment.BillingDetails{Name: addr.Name, Email: addr.Email},
		Amount:       r.Total,
		Currency:     s.settings.Currency,
	})
	if err == nil && conf.PaymentID == "" {
		err = payment.ErrMissingPaymentID
	}
	if err != nil {
		s.fail(r, log)
		log.Info("payment declined", zap.Error(err))
		return nil, &Error{Step: StepConfirm, Kind: ErrPaymentDeclined, Err: err}
	}
	r.PaymentID = conf.PaymentID
	if err := advance(r, domain.CheckoutStatusPaymentConfirmed); err != nil {
		return nil, err
	}

	// step 3: order record. Money has moved: the caller going away must not
	// abort it, and failures are journaled.
	ctx = context.WithoutCancel(ctx)
	order := newOrderRequest(addr, lines, r.Total, r.PaymentID)
	orderID, err := s.backend.CreateOrder(ctx, req.Token, order)
	if err != nil {
		if advErr := advance(r, domain.CheckoutStatusUnreconciled); advErr != nil {
			return nil, advErr
		}
		log.Error("order persistence failed after payment",
			zap.String("payment_id", r.PaymentID), zap.Error(err))
		s.record(ctx, log, journal.EventOrderPersistenceFailedAfterPayment, r, req, &order, err)
		return nil, &Error{Step: StepPersistOrder, Kind: ErrOrderPersistenceFailedAfterPayment, PaymentID: r.PaymentID, Err: err}
	}
	r.OrderID = orderID
	if err := advance(r, domain.CheckoutStatusCompleted); err != nil {
		return nil, err
	}

	if !store.ClearIfVersion(version) {
		r.CartChanged = true
		log.Warn("cart changed during checkout, keeping newer cart")
	}
	s.record(ctx, log, journal.EventCheckoutCompleted, r, req, nil, nil)
	log.Info("checkout completed",
		zap.String("order_id", r.OrderID),
		zap.String("payment_id", r.PaymentID),
		zap.Stringer("total", r.Total))
	return r, nil
}

func advance(r *Receipt, next domain.CheckoutStatus) error {
	if !domain.CanTransitionTo(r.Status, next) {
		return ErrIllegalTransition
	}
	r.Status = next
	return nil
}

func (s *CheckoutServiceImpl) fail(r *Receipt, log *zap.Logger) {
	if err := advance(r, domain.CheckoutStatusFailed); err != nil {
		log.Error("unexpected checkout state", zap.Stringer("status", r.Status))
	}
}

type eventPayload struct {
	CheckoutID  string                `json:"checkout_id"`
	SessionID   string                `json:"session_id"`
	PaymentID   string                `json:"payment_id"`
	OrderID     string                `json:"order_id,omitempty"`
	Status      domain.CheckoutStatus `json:"status"`
	Items       []domain.CartLine     `json:"items"`
	TotalAmount domain.Money          `json:"total_amount"`
	Currency    string                `json:"currency"`
	CartChanged bool                  `json:"cart_changed,omitempty"`
	Order       *OrderRequest         `json:"order,omitempty"`
	Error       string                `json:"error,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
}

// record never changes the checkout result; a lost event is logged with
// enough context to reconcile by hand.
func (s *CheckoutServiceImpl) record(ctx context.Context, log *zap.Logger, eventType string, r *Receipt, req Request, order *OrderRequest, cause error) {
	if s.journal == nil {
		return
	}
	p := eventPayload{
		CheckoutID:  r.CheckoutID,
		SessionID:   req.SessionID,
		PaymentID:   r.PaymentID,
		OrderID:     r.OrderID,
		Status:      r.Status,
		Items:       r.Lines,
		TotalAmount: r.Total,
		Currency:    s.settings.Currency,
		CartChanged: r.CartChanged,
		Order:       order,
		OccurredAt:  s.now().UTC(),
	}
	if cause != nil {
		p.Error = cause.Error()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		log.Error("failed to marshal checkout event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	// the caller's context may already be cancelled, the record must still land
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.JournalTimeout)
	defer cancel()
	if _, err := s.journal.Append(jctx, r.CheckoutID, eventType, payload); err != nil {
		log.Error("failed to journal checkout event",
			zap.String("event_type", eventType),
			zap.String("payment_id", r.PaymentID),
			zap.ByteString("payload", payload),
			zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrAuthorizationFailed):
		return "authorization_failed"
	case errors.Is(err, ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(err, ErrOrderPersistenceFailedAfterPayment):
		return "order_persistence_failed"
	default:
		return "rejected"
	}
}
