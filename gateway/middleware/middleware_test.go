package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/epoch", nil))
	generated := res.Header().Get(HeaderRequestID)
	require.Len(t, generated, 36)
	require.Equal(t, generated, seen)

	req := httptest.NewRequest(http.MethodGet, "/epoch", nil)
	req.Header.Set(HeaderRequestID, "caller-supplied")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, "caller-supplied", res.Header().Get(HeaderRequestID))
	require.Equal(t, "caller-supplied", seen)

	req = httptest.NewRequest(http.MethodGet, "/epoch", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLength+1))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Len(t, res.Header().Get(HeaderRequestID), 36)
}

func TestCORSAnswersPreflight(t *testing.T) {
	called := false
	handler := CORS(CORSConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodOptions, "/epoch", nil))
	require.Equal(t, http.StatusNoContent, res.Code)
	require.False(t, called)
	require.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, OPTIONS", res.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSRestrictsOrigins(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://explorer.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/epoch", nil)
	req.Header.Set("Origin", "https://explorer.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, "https://explorer.example", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/epoch", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestObservabilityCountsRequests(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{MetricsPrefix: "test", Metrics: true}, nil)
	handler := obs.Middleware("epoch")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/epoch", nil))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(obs.requests.WithLabelValues("epoch", http.MethodGet, "500")))

	obs.ObserveFailure("epoch", "query")
	require.Equal(t, float64(1), testutil.ToFloat64(obs.failures.WithLabelValues("epoch", "query")))

	metrics := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, metrics.Body.String(), "test_requests_total")
}

func TestObservabilityDisabledPassesThrough(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{}, nil)
	handler := obs.Middleware("epoch")(okHandler())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/epoch", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, float64(0), testutil.ToFloat64(obs.requests.WithLabelValues("epoch", http.MethodGet, "200")))

	var nilObs *Observability
	nilObs.ObserveFailure("epoch", "query")
}

func TestObservabilityRecordsOneServerSpanPerRequest(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previousProvider := otel.GetTracerProvider()
	previousPropagator := otel.GetTextMapPropagator()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(previousProvider)
		otel.SetTextMapPropagator(previousPropagator)
	})

	obs := NewObservability(ObservabilityConfig{Tracing: true}, nil)
	handler := obs.Middleware("epoch")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/epoch", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "epoch", spans[0].Name())
	require.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	require.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
}
