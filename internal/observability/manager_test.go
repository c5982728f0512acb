package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/delivery/internal/config"
)

func newManager(t *testing.T, obs config.Observability) *Manager {
	t.Helper()
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, config.Config{Observability: obs}, zaptest.NewLogger(t))
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)
	return mgr
}

func TestPrometheusMetricsAreScraped(t *testing.T) {
	mgr := newManager(t, config.Observability{
		ServiceName:     "delivery-service",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	})
	require.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())
	assert.Equal(t, "/metrics", mgr.PrometheusPath())

	counter, err := mgr.MeterProvider().Meter("test").Int64Counter("orders.created")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "orders_created_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestTwoManagersDoNotCollide(t *testing.T) {
	obs := config.Observability{EnableMetrics: true, MetricsExporter: "prometheus"}
	newManager(t, obs)
	newManager(t, obs)
}

func TestDisabledExporters(t *testing.T) {
	mgr := newManager(t, config.Observability{
		EnableTracing:   true,
		TraceExporter:   "none",
		EnableMetrics:   true,
		MetricsExporter: "none",
	})
	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
}

func TestOTLPRequiresEndpoint(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	_, err := NewManager(lc, config.Config{Observability: config.Observability{
		EnableTracing: true,
		TraceExporter: "otlp",
	}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestStartInstallsTraceContextPropagator(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	newManager(t, config.Observability{})
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestStdoutTracingSamplesByRatio(t *testing.T) {
	mgr := newManager(t, config.Observability{
		EnableTracing: true,
		TraceExporter: "stdout",
		TraceSampling: 1,
	})
	require.True(t, mgr.TracingEnabled())

	_, span := mgr.tracerProvider.Tracer("test").Start(context.Background(), "orders.create")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())
}
