package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTestTracer installs an in-memory tracer provider globally for the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestStartMeetingSpan(t *testing.T) {
	exp := useTestTracer(t)
	logs := captureLogs(t)

	ctx, span, log := StartMeetingSpan(context.Background(), "stop", "meeting-42")
	log.Info("meeting stopped")
	cid := CorrelationID(ctx)
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "meeting.stop" {
		t.Fatalf("spans = %v, want one meeting.stop", spans)
	}
	var id string
	for _, a := range spans[0].Attributes {
		if a.Key == AttrMeetingID {
			id = a.Value.AsString()
		}
	}
	if id != "meeting-42" {
		t.Errorf("meeting.id = %q, want meeting-42", id)
	}

	out := logs.String()
	for _, want := range []string{"session_id=meeting-42", "trace_id=" + cid, "span_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
	if len(cid) != 32 {
		t.Errorf("correlation id = %q, want 32 hex digits", cid)
	}
}

func TestLogger_WithoutSpan(t *testing.T) {
	logs := captureLogs(t)
	if CorrelationID(context.Background()) != "" {
		t.Error("CorrelationID without a span should be empty")
	}
	Logger(context.Background()).Warn("api: request failed", "status", 502)
	if out := logs.String(); strings.Contains(out, "trace_id") || !strings.Contains(out, "status=502") {
		t.Errorf("log = %q, want plain record", out)
	}
}

// retainedSpans keeps exported spans readable after the provider shuts down.
type retainedSpans struct{ *tracetest.InMemoryExporter }

func (retainedSpans) Shutdown(context.Context) error { return nil }

func TestSetup(t *testing.T) {
	origTP, origMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
	exp := tracetest.NewInMemoryExporter()

	tel, err := Setup(context.Background(), TelemetryConfig{Version: "1.2.3", SpanExporter: retainedSpans{exp}})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tel.Metrics == nil {
		t.Fatal("Setup returned no metrics")
	}
	tel.Metrics.RecordPersistAttempt(context.Background(), "postgres", "ok")

	_, span, _ := StartMeetingSpan(context.Background(), "start", "meeting-1")
	span.End()
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	var service, version string
	for _, a := range spans[0].Resource.Attributes() {
		switch a.Key {
		case "service.name":
			service = a.Value.AsString()
		case "service.version":
			version = a.Value.AsString()
		}
	}
	if service != "meetscribe" || version != "1.2.3" {
		t.Errorf("resource service = %q %q, want meetscribe 1.2.3", service, version)
	}
}
