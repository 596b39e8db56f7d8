package publisher

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_storefront/internal/journal"
	"github.com/segmentio/kafka-go"
)

type mockSource struct {
	mu        sync.Mutex
	events    []*journal.OutboxEvent
	getErr    error
	markErr   error
	processed []int64
}

func (m *mockSource) GetUnprocessedEvents(_ context.Context, limit int) ([]*journal.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*journal.OutboxEvent
	for _, e := range m.events {
		if e.ProcessedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockSource) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	for _, e := range m.events {
		if e.ID == id {
			now := e.CreatedAt
			e.ProcessedAt = &now
		}
	}
	m.processed = append(m.processed, id)
	return nil
}

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	failAt   int // 1-based call number that fails, 0 never
	calls    int
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAt != 0 && m.calls == m.failAt {
		return errors.New("broker unavailable")
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// chanReader serves messages from a channel and blocks until ctx is done.
type chanReader struct {
	ch chan kafka.Message
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) Close() error { return nil }

type recordingEvictor struct {
	mu      sync.Mutex
	evicted []string
}

func (r *recordingEvictor) Close(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, sessionID)
}

func (r *recordingEvictor) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.evicted...)
}
