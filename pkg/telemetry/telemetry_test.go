package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/callgrind-analysis/pkg/config"
)

func TestInit_Disabled(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")

	ctx := context.Background()
	shutdown, err := Init(ctx, config.TelemetryConfig{})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if Enabled() {
		t.Error("Expected tracing to stay disabled")
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("Expected no error on shutdown, got %v", err)
	}
}

func TestInit_EnabledByConfig(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	previous := otel.GetTracerProvider()
	defer otel.SetTracerProvider(previous)

	ctx := context.Background()
	shutdown, err := Init(ctx, config.TelemetryConfig{
		Enabled:  true,
		Endpoint: "http://127.0.0.1:4318",
		Protocol: "http/protobuf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Enabled() {
		t.Error("Expected tracing to be enabled")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
	if Enabled() {
		t.Error("Expected shutdown to disable tracing")
	}
}

func TestInitWithConfig_Nil(t *testing.T) {
	shutdown, err := InitWithConfig(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(previous)

	_, span := StartSpan(context.Background(), "parse", attribute.String("source", "a.out"))
	EndSpan(span, errors.New("schema missing"))

	_, exportSpan := StartSpan(context.Background(), "export")
	EndSpan(exportSpan, nil)

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(ended))
	}
	if ended[0].Name() != "parse" || ended[0].Status().Code != codes.Error {
		t.Errorf("unexpected first span: %s %v", ended[0].Name(), ended[0].Status())
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("expected the error to be recorded as an event")
	}
	if ended[1].Status().Code != codes.Unset {
		t.Errorf("expected unset status, got %v", ended[1].Status())
	}
	if ended[0].InstrumentationScope().Name != InstrumentationName {
		t.Errorf("unexpected scope %q", ended[0].InstrumentationScope().Name)
	}
}
