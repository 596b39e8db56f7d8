package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidSession = errors.New("session id is required")
	// ErrStorageUnavailable means a snapshot could not be read or deleted.
	ErrStorageUnavailable = errors.New("cart storage unavailable")
)

// Backend loads and saves cart snapshots by session id.
type Backend interface {
	// Load returns no lines and no error for a session without a usable
	// snapshot. An error means a snapshot may exist but was not read.
	Load(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Save(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Forget(ctx context.Context, sessionID string) error
}

type session struct {
	store    *Store
	lastSeen time.Time
}

// Registry owns one Store per session.
type Registry struct {
	backend Backend
	log     *zap.Logger
	metrics *metrics.Registry
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	sfg      singleflight.Group // one rehydration per session id
}

// NewRegistry creates a registry. A zero ttl disables idle eviction.
func NewRegistry(backend Backend, log *zap.Logger, m *metrics.Registry, ttl time.Duration) *Registry {
	return &Registry{
		backend:  backend,
		log:      log,
		metrics:  m,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Open returns the session's store, rehydrating it on first access. A failed
// rehydration is not cached; the next Open tries again.
func (r *Registry) Open(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	if s := r.touch(sessionID); s != nil {
		return s, nil
	}

	v, err, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		if s := r.touch(sessionID); s != nil {
			return s, nil
		}
		// every caller waiting on this session shares the load
		lines, err := r.backend.Load(context.WithoutCancel(ctx), sessionID)
		if err != nil {
			r.log.Warn("cart rehydration failed",
				zap.String("session_id", sessionID), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		store := NewStore(lines, &backendSink{backend: r.backend, sessionID: sessionID, log: r.log}, r.metrics)

		r.mu.Lock()
		r.sessions[sessionID] = &session{store: store, lastSeen: r.now()}
		r.mu.Unlock()
		r.metrics.SessionOpened()
		r.log.Debug("cart session opened",
			zap.String("session_id", sessionID), zap.Int("lines", store.Len()))
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

func (r *Registry) touch(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	s.lastSeen = r.now()
	return s.store
}

// Close drops the in-memory store. The persisted snapshot is kept.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if ok {
		r.metrics.SessionClosed()
	}
}

// Discard drops the session and deletes its persisted snapshot.
func (r *Registry) Discard(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	r.Close(sessionID)
	if err := r.backend.Forget(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	r.log.Debug("cart session discarded", zap.String("session_id", sessionID))
	return nil
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the ttl and returns how many it
// closed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var idle []string
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	for _, id := range idle {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for range idle {
		r.metrics.SessionClosed()
	}
	if len(idle) > 0 {
		r.log.Info("evicted idle cart sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

type backendSink struct {
	backend   Backend
	sessionID string
	log       *zap.Logger
}

// Persist logs failures: a cart mutation never fails because storage did.
func (b *backendSink) Persist(lines []domain.CartLine) {
	if err := b.backend.Save(context.Background(), b.sessionID, lines); err != nil {
		b.log.Error("cart snapshot write failed",
			zap.String("session_id", b.sessionID), zap.Error(err))
	}
}
