// Package observe provides application-wide observability primitives for
// meetscribe: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [Setup] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all meetscribe metrics.
const meterName = "github.com/MrWong99/meetscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// DispatchDuration tracks how long one live frame spends in the streaming
	// transcriber.
	DispatchDuration metric.Float64Histogram

	// TranscribeFileDuration tracks full re-transcription of a recording.
	TranscribeFileDuration metric.Float64Histogram

	// SummarizeDuration tracks end-to-end summarization latency.
	SummarizeDuration metric.Float64Histogram

	// --- Counters ---

	// CaptureFrames counts frames read from the input device.
	CaptureFrames metric.Int64Counter

	// CaptureOverflows counts input overflows reported by the device.
	CaptureOverflows metric.Int64Counter

	// DroppedFrames counts frames dropped from live transcription because the
	// dispatch queue was full.
	DroppedFrames metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// PersistAttempts counts meeting save attempts. Use with attributes:
	//   attribute.String("store", ...), attribute.String("status", ...)
	PersistAttempts metric.Int64Counter

	// BroadcastDeliveries counts status deliveries to observers. Use with
	// attribute:
	//   attribute.String("status", "ok"|"pruned")
	BroadcastDeliveries metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveMeetings is 1 while a meeting is recording.
	ActiveMeetings metric.Int64UpDownCounter

	// Observers tracks the number of registered live-status observers.
	Observers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Live
// dispatch sits at the low end, file transcription and summaries at the top.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.DispatchDuration, err = m.Float64Histogram("meetscribe.dispatch.duration",
		metric.WithDescription("Latency of streaming transcription per live frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeFileDuration, err = m.Float64Histogram("meetscribe.transcribe_file.duration",
		metric.WithDescription("Latency of full re-transcription of a recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummarizeDuration, err = m.Float64Histogram("meetscribe.summarize.duration",
		metric.WithDescription("Latency of meeting summarization."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CaptureFrames, err = m.Int64Counter("meetscribe.capture.frames",
		metric.WithDescription("Total audio frames read from the input device."),
	); err != nil {
		return nil, err
	}
	if met.CaptureOverflows, err = m.Int64Counter("meetscribe.capture.overflows",
		metric.WithDescription("Total input overflows reported by the audio device."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("meetscribe.dispatch.dropped_frames",
		metric.WithDescription("Frames dropped from live transcription because the queue was full."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("meetscribe.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.PersistAttempts, err = m.Int64Counter("meetscribe.persist.attempts",
		metric.WithDescription("Total meeting save attempts by store and status."),
	); err != nil {
		return nil, err
	}
	if met.BroadcastDeliveries, err = m.Int64Counter("meetscribe.broadcast.deliveries",
		metric.WithDescription("Total status deliveries to observers by outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("meetscribe.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveMeetings, err = m.Int64UpDownCounter("meetscribe.active_meetings",
		metric.WithDescription("Number of meetings currently recording."),
	); err != nil {
		return nil, err
	}
	if met.Observers, err = m.Int64UpDownCounter("meetscribe.observers",
		metric.WithDescription("Number of registered live-status observers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("meetscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordPersistAttempt records one save attempt against store.
func (m *Metrics) RecordPersistAttempt(ctx context.Context, store, status string) {
	m.PersistAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("store", store),
			attribute.String("status", status),
		),
	)
}

// RecordBroadcast records n deliveries with the given outcome.
func (m *Metrics) RecordBroadcast(ctx context.Context, status string, n int) {
	if n <= 0 {
		return
	}
	m.BroadcastDeliveries.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("status", status)),
	)
}
