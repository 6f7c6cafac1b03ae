package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type ObservabilityConfig struct {
	ServiceName   string
	MetricsPrefix string
	LogRequests   bool
	Metrics       bool
	Tracing       bool
}

type Observability struct {
	cfg       ObservabilityConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	registry  *prometheus.Registry
}

func NewObservability(cfg ObservabilityConfig, logger *slog.Logger) *Observability {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ledgergate"
	}
	if cfg.MetricsPrefix == "" {
		cfg.MetricsPrefix = "ledgergate"
	}
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.MetricsPrefix,
		Name:      "requests_total",
		Help:      "Total HTTP requests processed by the gateway.",
	}, []string{"route", "method", "status"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.MetricsPrefix,
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.MetricsPrefix,
		Name:      "failures_total",
		Help:      "Requests answered with an error, by failure class.",
	}, []string{"route", "class"})
	registry.MustRegister(requests, durations, failures)
	return &Observability{
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(cfg.ServiceName),
		requests:  requests,
		durations: durations,
		failures:  failures,
		registry:  registry,
	}
}

func (o *Observability) enabled() bool {
	return o != nil && (o.cfg.Metrics || o.cfg.Tracing || o.cfg.LogRequests)
}

// Middleware records the server span, request metrics and an access log line
// for every request served under route. Incoming trace context is extracted
// from the request headers so the span joins the caller's trace.
func (o *Observability) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !o.enabled() {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ctx := r.Context()
			var span trace.Span
			if o.cfg.Tracing {
				ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
				ctx, span = o.tracer.Start(ctx, route, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", route),
				))
			}
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))
			if span != nil {
				span.SetAttributes(attribute.Int("http.status_code", recorder.status))
				if recorder.status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(recorder.status))
				}
				span.End()
			}
			duration := time.Since(start).Seconds()
			if o.cfg.Metrics {
				o.requests.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
				o.durations.WithLabelValues(route, r.Method).Observe(duration)
			}
			if o.cfg.LogRequests {
				o.logger.Info("request served",
					slog.String("route", route),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", recorder.status),
					slog.Float64("duration_ms", duration*1000),
					slog.String("request_id", RequestIDFromContext(ctx)),
				)
			}
		})
	}
}

// ObserveFailure counts a failed request by its failure class.
func (o *Observability) ObserveFailure(route, class string) {
	if o == nil || !o.cfg.Metrics {
		return
	}
	o.failures.WithLabelValues(route, class).Inc()
}

// MetricsEnabled reports whether request metrics are collected and /metrics
// should be served.
func (o *Observability) MetricsEnabled() bool {
	return o != nil && o.cfg.Metrics
}

func (o *Observability) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func (o *Observability) Registry() *prometheus.Registry {
	return o.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.wroteHeader = true
	}
	return s.ResponseWriter.Write(b)
}
