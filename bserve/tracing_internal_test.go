package bserve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bflow"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewExporter(t *testing.T) {
	exp, err := newExporter("stdout")
	require.NoError(t, err)
	require.NotNil(t, exp)

	exp, err = newExporter("none")
	require.NoError(t, err)
	require.Nil(t, exp)

	_, err = newExporter("xrayudp")
	require.ErrorContains(t, err, "unsupported BFLOW_OTEL_EXPORTER")
}

func TestNewTracerProvider(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	tp, err := NewTracerProvider(lc, testEnv{})
	require.NoError(t, err)
	require.IsType(t, &sdktrace.TracerProvider{}, tp)

	lc.RequireStart()
	lc.RequireStop()
}

func TestWithTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	core, logs := observer.New(zapcore.DebugLevel)
	app := bflow.New().Use(WithLogger(zap.New(core)), func(c *bflow.Context) {
		Log(c).Info("traced", zap.Bool("span_valid", Span(c).SpanContext().IsValid()))
		c.SetBody("ok")
	})

	handler := withTracing(tp, NewPropagator(), "test", "/health")(app)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /items", spans[0].Name())

	traced := logs.FilterMessage("traced").All()
	require.Len(t, traced, 2)

	fields := traced[0].ContextMap()
	require.Equal(t, spans[0].SpanContext().TraceID().String(), fields["trace_id"])
	require.Equal(t, spans[0].SpanContext().SpanID().String(), fields["span_id"])
	require.Equal(t, true, fields["span_valid"])
	require.NotContains(t, traced[1].ContextMap(), "trace_id", "health checks are not traced")
	require.Equal(t, false, traced[1].ContextMap()["span_valid"])
}
