package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_storefront/internal/domain"
)

// recordingSink keeps every snapshot the store persisted.
type recordingSink struct {
	mu    sync.Mutex
	saves [][]domain.CartLine
}

func (r *recordingSink) Persist(lines []domain.CartLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, lines)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recordingSink) last() []domain.CartLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil
	}
	return r.saves[len(r.saves)-1]
}

type mockBackend struct {
	mu      sync.Mutex
	data    map[string][]domain.CartLine
	loads   atomic.Int32
	saveErr error
	loadErr error
	block   chan struct{}
	// loadCtxErr is the ctx error Load saw on its last call.
	loadCtxErr error
}

func newMockBackend() *mockBackend {
	return &mockBackend{data: make(map[string][]domain.CartLine)}
}

func (m *mockBackend) Load(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	m.loads.Add(1)
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCtxErr = ctx.Err()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data[sessionID], nil
}

func (m *mockBackend) Forget(_ context.Context, sessionID string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

func (m *mockBackend) setLoadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *mockBackend) Save(_ context.Context, sessionID string, lines []domain.CartLine) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = lines
	return nil
}

var errStorageDown = errors.New("storage down")

func product(id string, price domain.Money) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: price, Photo: "https://img/" + id}
}
