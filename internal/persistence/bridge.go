package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/metrics"
	"go.uber.org/zap"
)

const keyNamespace = "cart"

// Key is the storage key for a session's cart.
func Key(sessionID string) string {
	return keyNamespace + ":" + sessionID
}

// Bridge moves cart snapshots between the cart store and a KV backend.
type Bridge struct {
	kv      KV
	log     *zap.Logger
	metrics *metrics.Registry
	timeout time.Duration
}

func NewBridge(kv KV, log *zap.Logger, m *metrics.Registry) *Bridge {
	return &Bridge{
		kv:      kv,
		log:     log,
		metrics: m,
		timeout: 2 * time.Second,
	}
}

// Load returns the persisted lines for a session. A missing or invalid
// snapshot yields an empty cart. A failed read is returned as an error: the
// snapshot may still be there and must not be overwritten by an empty cart.
func (b *Bridge) Load(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	raw, err := b.kv.Get(ctx, Key(sessionID))
	if errors.Is(err, ErrNotFound) {
		b.metrics.SnapshotLoaded("missing")
		return nil, nil
	}
	if err != nil {
		b.metrics.SnapshotLoaded("read_error")
		return nil, fmt.Errorf("read cart snapshot: %w", err)
	}

	lines, err := DecodeSnapshot(raw)
	if err != nil {
		b.log.Warn("discarding cart snapshot",
			zap.String("session_id", sessionID), zap.Error(err))
		b.metrics.SnapshotLoaded(outcomeFor(err))
		return nil, nil
	}
	b.metrics.SnapshotLoaded("ok")
	return lines, nil
}

// Save writes the full cart for a session. An empty cart is stored as an
// empty snapshot, not deleted.
func (b *Bridge) Save(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	raw, err := EncodeSnapshot(lines)
	if err != nil {
		b.metrics.SnapshotSaved("encode_error")
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.kv.Set(ctx, Key(sessionID), raw); err != nil {
		b.metrics.SnapshotSaved("write_error")
		return err
	}
	b.metrics.SnapshotSaved("ok")
	return nil
}

// Forget removes a session's snapshot entirely. Forgetting a session with no
// snapshot is not an error.
func (b *Bridge) Forget(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.kv.Delete(ctx, Key(sessionID)); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	default:
		return "corrupt"
	}
}
