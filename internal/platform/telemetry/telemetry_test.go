package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vortechron/nightwatch-testing/internal/platform/logger"
	"github.com/vortechron/nightwatch-testing/internal/platform/telemetry"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	original := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(original) })
}

func TestInit_Disabled(t *testing.T) {
	restoreGlobalProvider(t)
	before := otel.GetTracerProvider()

	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInit_ExportsSpansOnShutdown(t *testing.T) {
	restoreGlobalProvider(t)
	var out bytes.Buffer

	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		Enabled:     true,
		ServiceName: "nightwatch-test",
		Writer:      &out,
		Logger:      logger.Discard(),
	})
	require.NoError(t, err)

	_, span := telemetry.Tracer().Start(context.Background(), "bulk.generate")
	telemetry.End(span, nil)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "bulk.generate")
	assert.Contains(t, out.String(), "nightwatch-test")
}

func TestEnd(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	_, okSpan := tracer.Start(context.Background(), "ok")
	telemetry.End(okSpan, nil)

	_, failedSpan := tracer.Start(context.Background(), "failed")
	telemetry.End(failedSpan, errors.New("boom"))

	telemetry.End(nil, errors.New("ignored"))

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "boom", ended[1].Status().Description)
	require.Len(t, ended[1].Events(), 1)
	assert.Equal(t, "exception", ended[1].Events()[0].Name)
}
