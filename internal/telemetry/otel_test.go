package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "rollreport", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracer_SpansWithoutProvider(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "report.generate")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}
