package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	l, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("warn", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("loud", "json")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New("info", "xml")
	assert.ErrorContains(t, err, "invalid log format")
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)

	WithTrace(context.Background(), l).Info("no span")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	WithTrace(ctx, l).Info("with span")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[1].ContextMap()["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entries[1].ContextMap()["span_id"])
}
