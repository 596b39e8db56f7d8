package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/journal"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "storefront-checkout"

// EventSource is the part of the journal the poller reads.
type EventSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*journal.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds the writer the poller publishes with.
func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// OutboxPoller publishes journaled checkout events at least once.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batch     int
	repo      EventSource
	writer    MessageWriter
	log       *zap.Logger
	metrics   *metrics.Registry
}

func NewOutboxPoller(repo EventSource, writer MessageWriter, tick time.Duration, log *zap.Logger, m *metrics.Registry) *OutboxPoller {
	if tick <= 0 {
		tick = time.Second
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: tick,
		batch:     100,
		repo:      repo,
		writer:    writer,
		log:       log,
		metrics:   m,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	events, err := p.repo.GetUnprocessedEvents(ctx, p.batch)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		errPublish := p.publishToKafka(ctx, event)
		p.metrics.OutboxResult(errPublish)
		if errPublish != nil {
			p.log.Warn("failed to publish event",
				zap.Int64("event_id", event.ID), zap.Error(errPublish))
			// keep ordering per aggregate: retry this batch next tick
			return published
		}

		errMark := p.repo.MarkEventAsProcessed(ctx, event.ID)
		if errMark != nil && !errors.Is(errMark, journal.ErrEventNotFound) {
			p.log.Warn("failed to mark event as processed",
				zap.Int64("event_id", event.ID), zap.Error(errMark))
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *journal.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // checkout_id for ordering
		Value: event.Payload,             // already JSON from the journal
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
