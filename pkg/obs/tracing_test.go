package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingNoneExporterIsInert(t *testing.T) {
	cfg := DefaultTraceConfig()
	cfg.ExporterType = "none"

	require.NoError(t, InitTracing(context.Background(), cfg))
	defer ShutdownTracing(context.Background())

	ctx, span := StartSpan(context.Background(), "test.span")
	assert.NotNil(t, span)
	span.End()
	_ = ctx
}

func TestInitTracingRejectsDoubleInit(t *testing.T) {
	cfg := DefaultTraceConfig()
	cfg.ExporterType = "none"

	require.NoError(t, InitTracing(context.Background(), cfg))
	defer ShutdownTracing(context.Background())

	err := InitTracing(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultTraceConfig()
	cfg.ExporterType = "carrier-pigeon"

	err := InitTracing(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInstrumentRecognizerChunkReturnsSpan(t *testing.T) {
	cfg := DefaultTraceConfig()
	cfg.ExporterType = "none"
	require.NoError(t, InitTracing(context.Background(), cfg))
	defer ShutdownTracing(context.Background())

	_, span := InstrumentRecognizerChunk(context.Background(), "s1", 1600, false)
	require.NotNil(t, span)
	InstrumentRecognizerOutcome(span, "complete", 42)
	span.End()
}
