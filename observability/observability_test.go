package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutOTLPEndpointStillBuildsInstruments(t *testing.T) {
	metrics, shutdown, err := Init(context.Background(), "test-service", "")
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.NotNil(t, metrics.ActiveRuns)
	assert.NotNil(t, metrics.NodeDuration)
	assert.NotNil(t, metrics.ToolErrors)

	metrics.ActiveRuns.Add(context.Background(), 1)
	metrics.NodeDuration.Record(context.Background(), 0.01)
	metrics.ToolErrors.Add(context.Background(), 1)

	require.NoError(t, shutdown(context.Background()))
}

func TestTracerReturnsNonNilTracer(t *testing.T) {
	assert.NotNil(t, Tracer("test"))
}
