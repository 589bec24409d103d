package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/meetscribe"

// AttrMeetingID is the span attribute carrying a meeting's session id.
const AttrMeetingID = attribute.Key("meeting.id")

// Tracer returns the meetscribe tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartMeetingSpan starts a "meeting.<op>" span tagged with the session id
// and returns a logger that carries the same session id plus the trace ids.
func StartMeetingSpan(ctx context.Context, op, sessionID string) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := StartSpan(ctx, "meeting."+op, trace.WithAttributes(AttrMeetingID.String(sessionID)))
	return ctx, span, Logger(ctx).With("session_id", sessionID)
}

// CorrelationID returns the trace id of the span in ctx, or "" without one.
// The API echoes it in the X-Correlation-ID header.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span, so API and meeting logs line up with X-Correlation-ID.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return l
}
