package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"meetscribe.dispatch.duration", m.DispatchDuration},
		{"meetscribe.transcribe_file.duration", m.TranscribeFileDuration},
		{"meetscribe.summarize.duration", m.SummarizeDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 12.5)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

// sumFor returns the value of the data point of the named sum whose attribute
// key equals value, or -1.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestCounterIncrement(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "deepgram", "stt", "ok")
	m.RecordProviderRequest(ctx, "deepgram", "stt", "ok")
	m.RecordProviderRequest(ctx, "deepgram", "stt", "error")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "meetscribe.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("requests{status=ok} = %d, want 2", got)
	}
	if got := sumFor(t, rm, "meetscribe.provider.requests", "status", "error"); got != 1 {
		t.Errorf("requests{status=error} = %d, want 1", got)
	}
}

func TestPersistAttemptsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPersistAttempt(ctx, "postgres", "error")
	m.RecordPersistAttempt(ctx, "postgres", "error")
	m.RecordPersistAttempt(ctx, "file", "ok")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "meetscribe.persist.attempts", "store", "file"); got != 1 {
		t.Errorf("attempts{store=file} = %d, want 1", got)
	}
	if got := sumFor(t, rm, "meetscribe.persist.attempts", "store", "postgres"); got != 2 {
		t.Errorf("attempts{store=postgres} = %d, want 2", got)
	}
}

func TestBroadcastDeliveries(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBroadcast(ctx, "ok", 3)
	m.RecordBroadcast(ctx, "pruned", 1)
	m.RecordBroadcast(ctx, "pruned", 0) // no-op

	rm := collect(t, reader)
	if got := sumFor(t, rm, "meetscribe.broadcast.deliveries", "status", "ok"); got != 3 {
		t.Errorf("deliveries{status=ok} = %d, want 3", got)
	}
	if got := sumFor(t, rm, "meetscribe.broadcast.deliveries", "status", "pruned"); got != 1 {
		t.Errorf("deliveries{status=pruned} = %d, want 1", got)
	}
}

func TestProviderErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderError(ctx, "openai", "llm")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "meetscribe.provider.errors", "kind", "llm"); got != 1 {
		t.Errorf("errors{kind=llm} = %d, want 1", got)
	}
}

func TestCaptureCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.CaptureFrames.Add(ctx, 100)
	m.CaptureOverflows.Add(ctx, 2)
	m.DroppedFrames.Add(ctx, 7)

	rm := collect(t, reader)
	for name, want := range map[string]int64{
		"meetscribe.capture.frames":          100,
		"meetscribe.capture.overflows":       2,
		"meetscribe.dispatch.dropped_frames": 7,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		sum := met.Data.(metricdata.Sum[int64])
		if got := sum.DataPoints[0].Value; got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// UpDownCounters are additive.
	m.ActiveMeetings.Add(ctx, 1)
	m.ActiveMeetings.Add(ctx, -1)
	m.ActiveMeetings.Add(ctx, 1)
	m.Observers.Add(ctx, 3)

	rm := collect(t, reader)

	gauges := []struct {
		name string
		want int64
	}{
		{"meetscribe.active_meetings", 1},
		{"meetscribe.observers", 3},
	}

	for _, tc := range gauges {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not a sum", tc.name)
			}
			if len(sum.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := sum.DataPoints[0].Value; got != tc.want {
				t.Errorf("gauge value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/api/meeting/status"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "meetscribe.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
