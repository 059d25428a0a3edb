package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type feedbackMetrics struct {
	submissions     metric.Int64Counter
	storeDegraded   metric.Int64Counter
	insightFallback metric.Int64Counter
}

var (
	feedbackMetricsOnce sync.Once
	feedbackMetricsInst *feedbackMetrics
)

// Instruments come from the global meter provider, so they are no-ops until
// OpenTelemetry is set up.
func ensureFeedbackMetrics() *feedbackMetrics {
	feedbackMetricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)

		submissions, err := meter.Int64Counter(
			"feedback.submissions",
			metric.WithDescription("Number of stored feedback submissions"),
		)
		if err != nil {
			return
		}
		storeDegraded, err := meter.Int64Counter(
			"feedback.store.degraded",
			metric.WithDescription("Number of switches to the in-memory feedback store"),
		)
		if err != nil {
			return
		}
		insightFallback, err := meter.Int64Counter(
			"feedback.insight.fallback",
			metric.WithDescription("Number of insight texts served from fallback content"),
		)
		if err != nil {
			return
		}

		feedbackMetricsInst = &feedbackMetrics{
			submissions:     submissions,
			storeDegraded:   storeDegraded,
			insightFallback: insightFallback,
		}
	})
	return feedbackMetricsInst
}

// RecordSubmission counts a stored submission by rating.
func RecordSubmission(ctx context.Context, rating int) {
	if m := ensureFeedbackMetrics(); m != nil {
		m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.Int("feedback.rating", rating)))
	}
}

// RecordStoreDegraded counts the switch to the in-memory store.
func RecordStoreDegraded(ctx context.Context, reason string) {
	if m := ensureFeedbackMetrics(); m != nil {
		m.storeDegraded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordInsightFallback counts an insight served without a model response.
func RecordInsightFallback(ctx context.Context, operation, reason string) {
	if m := ensureFeedbackMetrics(); m != nil {
		m.insightFallback.Add(ctx, 1, metric.WithAttributes(
			attribute.String("insight.operation", operation),
			attribute.String("reason", reason),
		))
	}
}
