package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WithoutCollectorIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := GetTracer("test").Start(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestAttributes(t *testing.T) {
	assert.Equal(t, "merojob", String("source", "merojob").Value.AsString())
	assert.Equal(t, int64(3), Int("stored", 3).Value.AsInt64())
}
