package otelx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(t.Context(), Options{Enabled: false, Endpoint: "ignored:4317"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("provider = %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
	}
	_, span := otel.Tracer("test").Start(t.Context(), "op")
	defer span.End()
	if span.SpanContext().IsSampled() {
		t.Fatal("disabled tracing sampled a span")
	}
}

func TestInit_Disabled_PropagatesInboundTrace(t *testing.T) {
	shutdown, _ := Init(t.Context(), Options{})
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	h := http.Header{}
	h.Set("traceparent", "00-0102030405060708090a0b0c0d0e0f10-0102030405060708-01")
	ctx := otel.GetTextMapPropagator().Extract(t.Context(), propagation.HeaderCarrier(h))

	sc := trace.SpanContextFromContext(ctx)
	if sc.TraceID().String() != "0102030405060708090a0b0c0d0e0f10" {
		t.Fatalf("trace id = %s", sc.TraceID())
	}
}

func TestInit_Enabled_ReturnsPromptly(t *testing.T) {
	// The gRPC exporter connects lazily, so an unreachable collector must
	// not block startup.
	start := time.Now()
	shutdown, err := Init(t.Context(), Options{
		Enabled:  true,
		Endpoint: "127.0.0.1:1",
		Insecure: true,
		Sample:   0.5,
		Service:  "sanctuary-web",
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if time.Since(start) > dialTimeout {
		t.Fatalf("Init took %s", time.Since(start))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{-1, "ParentBased{root:AlwaysOffSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{1, "ParentBased{root:AlwaysOnSampler"},
		{2, "ParentBased{root:AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); len(got) < len(tt.want) || got[:len(tt.want)] != tt.want {
			t.Errorf("sampler(%v) = %q, want prefix %q", tt.ratio, got, tt.want)
		}
	}
}

func TestServiceName(t *testing.T) {
	if got := serviceName(Options{Service: "sanctuary-web", Component: "server"}); got != "sanctuary-web.server" {
		t.Fatalf("got %q", got)
	}
	if got := serviceName(Options{Service: "sanctuary-web"}); got != "sanctuary-web" {
		t.Fatalf("got %q", got)
	}
}
