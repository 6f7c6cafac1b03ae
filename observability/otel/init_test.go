package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken, =empty,tenant=ledger")
	if len(headers) != 2 || headers["api-key"] != "secret" || headers["tenant"] != "ledger" {
		t.Fatalf("unexpected headers %v", headers)
	}
	if got := ParseHeaders(""); len(got) != 0 {
		t.Fatalf("expected no headers, got %v", got)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318/")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer x")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "")

	cfg := ConfigFromEnv("ledgergate", "prod")
	if cfg.Endpoint != "collector:4318" {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if !cfg.Insecure {
		t.Fatalf("expected http endpoint to imply insecure export")
	}
	if cfg.Headers["authorization"] != "Bearer x" {
		t.Fatalf("unexpected headers %v", cfg.Headers)
	}
	if cfg.Environment != "prod" {
		t.Fatalf("unexpected environment %q", cfg.Environment)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://collector.example")
	cfg = ConfigFromEnv("ledgergate", "prod")
	if cfg.Endpoint != "collector.example" {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.Insecure {
		t.Fatalf("expected https endpoint to stay secure")
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name to fail")
	}
}

func TestInitWithoutSignals(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "ledgergate"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
