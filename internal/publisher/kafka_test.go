package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

func setupKafka(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	ctx := context.Background()

	// Start Kafka container using testcontainers Kafka module
	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")
	return brokers[0]
}

func TestKafka_PollerToConsumer(t *testing.T) {
	broker := setupKafka(t)
	topic := "storefront-checkout-test"

	src := &mockSource{events: sampleEvents()}
	writer := NewKafkaWriter(topic, broker)
	p := NewOutboxPoller(src, writer, time.Second, zap.NewNop(), nil)
	defer p.Close()

	require.Eventually(t, func() bool {
		p.processUnpublishedEvents(context.Background())
		return len(src.processed) == 2
	}, 30*time.Second, 500*time.Millisecond)

	evictor := &recordingEvictor{}
	consumer := NewCartConsumer(NewKafkaReader(topic, "storefront-test", broker), evictor, zap.NewNop())
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for len(evictor.list()) == 0 && ctx.Err() == nil {
		_ = consumer.consumeOne(ctx)
	}
	assert.Equal(t, []string{"s1"}, evictor.list())
}
