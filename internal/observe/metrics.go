// Package observe provides application-wide observability primitives for
// meetscribe: OpenTelemetry metrics, tracing, and HTTP middleware that ties
// them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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
const meterName = "github.com/meetscribe/meetscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Ingestion counters ---

	// FramesIngested counts inbound frames. Use with attribute:
	//   attribute.String("frame_type", ...)
	FramesIngested metric.Int64Counter

	// AudioBytesWritten counts PCM bytes flushed to WAV writers. Use with
	// attribute: attribute.String("channel", "mixed"|"participant")
	AudioBytesWritten metric.Int64Counter

	// PendingAudioDropped counts pre-format audio chunks evicted because a
	// pending buffer hit its cap.
	PendingAudioDropped metric.Int64Counter

	// SessionsClosed counts completed sessions. Use with attribute:
	//   attribute.String("reason", ...)
	SessionsClosed metric.Int64Counter

	// --- Pipeline counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Latency histograms ---

	// TranscribeDuration tracks per-file transcription latency.
	TranscribeDuration metric.Float64Histogram

	// SummarizeDuration tracks summarisation latency.
	SummarizeDuration metric.Float64Histogram

	// ArchiveDuration tracks live-to-completed archival latency.
	ArchiveDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live recording sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveParticipants tracks per-participant writers open across all
	// sessions.
	ActiveParticipants metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries in seconds. Archival is
// near-instant while provider calls on long meetings can run for minutes.
var latencyBuckets = []float64{
	0.01, 0.05, 0.25, 1, 5, 15, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesIngested, err = m.Int64Counter("meetscribe.frames.ingested",
		metric.WithDescription("Total inbound frames by frame type."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesWritten, err = m.Int64Counter("meetscribe.audio.bytes_written",
		metric.WithDescription("Total PCM bytes written to WAV files by channel."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.PendingAudioDropped, err = m.Int64Counter("meetscribe.audio.pending_dropped",
		metric.WithDescription("Pre-format audio chunks dropped due to full pending buffers."),
	); err != nil {
		return nil, err
	}
	if met.SessionsClosed, err = m.Int64Counter("meetscribe.sessions.closed",
		metric.WithDescription("Total sessions closed by close reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("meetscribe.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("meetscribe.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.TranscribeDuration, err = m.Float64Histogram("meetscribe.transcribe.duration",
		metric.WithDescription("Latency of per-file transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummarizeDuration, err = m.Float64Histogram("meetscribe.summarize.duration",
		metric.WithDescription("Latency of meeting summarisation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ArchiveDuration, err = m.Float64Histogram("meetscribe.archive.duration",
		metric.WithDescription("Latency of promoting a live session directory to completed."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("meetscribe.active_sessions",
		metric.WithDescription("Number of live recording sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveParticipants, err = m.Int64UpDownCounter("meetscribe.active_participants",
		metric.WithDescription("Number of open per-participant writers across all sessions."),
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

// RecordFrame records a frame-ingested counter increment for one frame type.
func (m *Metrics) RecordFrame(ctx context.Context, frameType string) {
	m.FramesIngested.Add(ctx, 1,
		metric.WithAttributes(attribute.String("frame_type", frameType)),
	)
}

// RecordAudioBytes records PCM bytes written to a channel ("mixed" or
// "participant").
func (m *Metrics) RecordAudioBytes(ctx context.Context, channel string, n int64) {
	m.AudioBytesWritten.Add(ctx, n,
		metric.WithAttributes(attribute.String("channel", channel)),
	)
}

// RecordSessionClosed records a session-closed counter increment with the
// close reason.
func (m *Metrics) RecordSessionClosed(ctx context.Context, reason string) {
	m.SessionsClosed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
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
