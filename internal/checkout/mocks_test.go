package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
)

type mockBackend struct {
	mu sync.Mutex

	clientSecret string
	intentErr    error
	orderID      string
	orderErr     error

	intentAmounts []domain.Money
	orders        []OrderRequest
	tokens        []string
}

func (m *mockBackend) CreatePaymentIntent(_ context.Context, amount domain.Money, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intentAmounts = append(m.intentAmounts, amount)
	if m.intentErr != nil {
		return "", m.intentErr
	}
	return m.clientSecret, nil
}

func (m *mockBackend) CreateOrder(ctx context.Context, token string, order OrderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.orders = append(m.orders, order)
	m.tokens = append(m.tokens, token)
	if m.orderErr != nil {
		return "", m.orderErr
	}
	return m.orderID, nil
}

type mockProcessor struct {
	paymentID string
	err       error
	calls     int
	// during runs inside Confirm, before it returns
	during func()
}

func (m *mockProcessor) Confirm(_ context.Context, req payment.ConfirmRequest) (payment.Confirmation, error) {
	m.calls++
	if m.during != nil {
		m.during()
	}
	if m.err != nil {
		return payment.Confirmation{}, m.err
	}
	return payment.Confirmation{PaymentID: m.paymentID, Status: "succeeded"}, nil
}

type journalEntry struct {
	aggregateID string
	eventType   string
	payload     []byte
}

type mockJournal struct {
	mu      sync.Mutex
	entries []journalEntry
	err     error
}

func (m *mockJournal) Append(_ context.Context, aggregateID, eventType string, payload []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.entries = append(m.entries, journalEntry{aggregateID, eventType, payload})
	return int64(len(m.entries)), nil
}

var errBackendDown = errors.New("backend down")
