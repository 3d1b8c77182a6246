package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "feedbackapp"

// FeedbackMetrics holds the counters recorded by the ingestion pipeline.
// A nil *FeedbackMetrics records nothing.
type FeedbackMetrics struct {
	submissions    metric.Int64Counter
	fallbacks      metric.Int64Counter
	degradedWrites metric.Int64Counter
}

// NewFeedbackMetrics creates the pipeline counters on the given meter
func NewFeedbackMetrics(meter metric.Meter) (*FeedbackMetrics, error) {
	submissions, err := meter.Int64Counter("feedback.submissions",
		metric.WithDescription("Feedback submissions by outcome"))
	if err != nil {
		return nil, err
	}
	fallbacks, err := meter.Int64Counter("feedback.enrichment.fallbacks",
		metric.WithDescription("Enrichment fields that used canned text instead of generated text"))
	if err != nil {
		return nil, err
	}
	degradedWrites, err := meter.Int64Counter("feedback.storage.degraded_writes",
		metric.WithDescription("Writes that failed on the primary store and went to the fallback file"))
	if err != nil {
		return nil, err
	}

	return &FeedbackMetrics{
		submissions:    submissions,
		fallbacks:      fallbacks,
		degradedWrites: degradedWrites,
	}, nil
}

// DefaultFeedbackMetrics creates the counters on the global meter provider.
// It falls back to no-op counters if the instruments cannot be created.
func DefaultFeedbackMetrics() *FeedbackMetrics {
	m, err := NewFeedbackMetrics(otel.Meter(meterName))
	if err != nil {
		m, _ = NewFeedbackMetrics(noop.NewMeterProvider().Meter(meterName))
	}
	return m
}

// RecordSubmission counts one submission with its outcome ("success", "invalid", "error")
func (m *FeedbackMetrics) RecordSubmission(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordEnrichmentFallback counts a canned fallback for one enrichment field
func (m *FeedbackMetrics) RecordEnrichmentFallback(ctx context.Context, field string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

// RecordDegradedWrite counts a primary write that was redirected to the fallback store
func (m *FeedbackMetrics) RecordDegradedWrite(ctx context.Context) {
	if m == nil {
		return
	}
	m.degradedWrites.Add(ctx, 1)
}
