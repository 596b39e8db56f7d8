package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/go_storefront/internal/journal"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// SessionEvictor drops a session's in-memory cart so the next access
// rehydrates from storage.
type SessionEvictor interface {
	Close(sessionID string)
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// CartConsumer evicts carts checked out by another instance sharing the
// same snapshot store.
type CartConsumer struct {
	reader  MessageReader
	evictor SessionEvictor
	log     *zap.Logger
	backoff time.Duration
}

func NewCartConsumer(reader MessageReader, evictor SessionEvictor, log *zap.Logger) *CartConsumer {
	return &CartConsumer{reader: reader, evictor: evictor, log: log, backoff: time.Second}
}

func (c *CartConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.consumeOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("error reading checkout event", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
		}
	}
}

func (c *CartConsumer) Close() error {
	return c.reader.Close()
}

type completedEvent struct {
	SessionID   string `json:"session_id"`
	CartChanged bool   `json:"cart_changed"`
}

func (c *CartConsumer) consumeOne(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if eventType(m) != journal.EventCheckoutCompleted {
		return nil
	}

	var payload completedEvent
	if errUnmarshal := json.Unmarshal(m.Value, &payload); errUnmarshal != nil {
		c.log.Warn("error parsing checkout event", zap.Error(errUnmarshal))
		return nil
	}
	if payload.SessionID == "" {
		c.log.Warn("checkout event without session_id")
		return nil
	}
	if payload.CartChanged {
		// the buyer kept editing; that cart is still live
		return nil
	}
	c.evictor.Close(payload.SessionID)
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
