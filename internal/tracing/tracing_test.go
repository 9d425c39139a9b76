package tracing

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/psantana5/paw/pkg/logging"
)

func TestDisabledTracerRecordsNothing(t *testing.T) {
	p, err := InitTracer(context.Background(), Config{ServiceName: "paw"}, logging.Discard())
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	defer p.Shutdown(context.Background())

	_, span := p.Tracer().Start(context.Background(), "noop")
	defer span.End()
	if span.IsRecording() {
		t.Error("disabled tracer must not record")
	}
}

func TestProviderTracerEndsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := &Provider{tp: tp, tracer: tp.Tracer("paw")}

	_, span := p.Tracer().Start(context.Background(), "paw.watch")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "paw.watch" {
		t.Errorf("expected span paw.watch, got %s", ended[0].Name())
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestShutdownWithoutProvider(t *testing.T) {
	var p Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %s, expected %s", tt.ratio, got, tt.want)
		}
	}
}
