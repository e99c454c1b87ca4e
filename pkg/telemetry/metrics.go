// Package telemetry provides OpenTelemetry integration for the application.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/pkg/logger"
)

const (
	// MeterName is the default meter name for the application
	MeterName = "github.com/patchlens/patchlens"
)

// Metrics holds all application metrics
type Metrics struct {
	// Review pipeline metrics
	ReviewsTotal   metric.Int64Counter
	ReviewDuration metric.Float64Histogram
	ActiveJobs     metric.Int64UpDownCounter
	StageFailures  metric.Int64Counter

	// Queue metrics
	QueueDepth   metric.Int64UpDownCounter
	JobsEnqueued metric.Int64Counter
	JobsRejected metric.Int64Counter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Upstream metrics
	LLMRequestsTotal   metric.Int64Counter
	LLMRequestDuration metric.Float64Histogram
	SCMRequestsTotal   metric.Int64Counter
	SCMRequestDuration metric.Float64Histogram

	// Notification metrics
	NotificationsTotal metric.Int64Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		var err error
		globalMetrics, err = initMetrics()
		if err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			// Return empty metrics to avoid nil pointer
			globalMetrics = &Metrics{}
		}
	})
	return globalMetrics
}

// initMetrics initializes all application metrics
func initMetrics() (*Metrics, error) {
	meter := otel.Meter(MeterName)
	m := &Metrics{}

	var err error

	// Review pipeline metrics
	m.ReviewsTotal, err = meter.Int64Counter(
		"patchlens_reviews_total",
		metric.WithDescription("Total number of review pipeline runs"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		return nil, err
	}

	m.ReviewDuration, err = meter.Float64Histogram(
		"patchlens_review_duration_seconds",
		metric.WithDescription("Duration of review pipeline runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveJobs, err = meter.Int64UpDownCounter(
		"patchlens_active_jobs",
		metric.WithDescription("Number of jobs currently being processed"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	m.StageFailures, err = meter.Int64Counter(
		"patchlens_stage_failures_total",
		metric.WithDescription("Total number of pipeline stage failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	// Queue metrics
	m.QueueDepth, err = meter.Int64UpDownCounter(
		"patchlens_queue_depth",
		metric.WithDescription("Number of jobs waiting in the queue"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsEnqueued, err = meter.Int64Counter(
		"patchlens_jobs_enqueued_total",
		metric.WithDescription("Total number of jobs accepted into the queue"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsRejected, err = meter.Int64Counter(
		"patchlens_jobs_rejected_total",
		metric.WithDescription("Total number of jobs rejected because the queue was full"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	// HTTP metrics
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"patchlens_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"patchlens_http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	// Upstream metrics
	m.LLMRequestsTotal, err = meter.Int64Counter(
		"patchlens_llm_requests_total",
		metric.WithDescription("Total number of LLM provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.LLMRequestDuration, err = meter.Float64Histogram(
		"patchlens_llm_request_duration_seconds",
		metric.WithDescription("Duration of LLM provider requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	m.SCMRequestsTotal, err = meter.Int64Counter(
		"patchlens_scm_requests_total",
		metric.WithDescription("Total number of source control server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.SCMRequestDuration, err = meter.Float64Histogram(
		"patchlens_scm_request_duration_seconds",
		metric.WithDescription("Duration of source control server requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	// Notification metrics
	m.NotificationsTotal, err = meter.Int64Counter(
		"patchlens_notifications_total",
		metric.WithDescription("Total number of notification delivery attempts"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Metrics initialized successfully")
	return m, nil
}

// RecordJobEnqueued records that a job was accepted into the queue
func (m *Metrics) RecordJobEnqueued(ctx context.Context, kind, trigger string) {
	if m.JobsEnqueued != nil {
		m.JobsEnqueued.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("kind", kind),
				attribute.String("trigger", trigger),
			),
		)
	}
	if m.QueueDepth != nil {
		m.QueueDepth.Add(ctx, 1)
	}
}

// RecordJobRejected records that a job was rejected because the queue was full
func (m *Metrics) RecordJobRejected(ctx context.Context, kind string) {
	if m.JobsRejected == nil {
		return
	}
	m.JobsRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordJobDequeued records that a worker picked up a job from the queue
func (m *Metrics) RecordJobDequeued(ctx context.Context) {
	if m.QueueDepth != nil {
		m.QueueDepth.Add(ctx, -1)
	}
	if m.ActiveJobs != nil {
		m.ActiveJobs.Add(ctx, 1)
	}
}

// RecordReviewCompleted records the outcome of a pipeline run
func (m *Metrics) RecordReviewCompleted(ctx context.Context, trigger, outcome string, durationSeconds float64) {
	if m.ActiveJobs != nil {
		m.ActiveJobs.Add(ctx, -1)
	}
	if m.ReviewsTotal != nil {
		m.ReviewsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("trigger", trigger),
				attribute.String("outcome", outcome),
			),
		)
	}
	if m.ReviewDuration != nil {
		m.ReviewDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(attribute.String("outcome", outcome)),
		)
	}
}

// RecordStageFailure records a pipeline stage failure
func (m *Metrics) RecordStageFailure(ctx context.Context, stage, errorType string) {
	if m.StageFailures == nil {
		return
	}
	m.StageFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("error_type", errorType),
		),
	)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m.HTTPRequestsTotal != nil {
		m.HTTPRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
				attribute.Int("status_code", statusCode),
			),
		)
	}
	if m.HTTPRequestDuration != nil {
		m.HTTPRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
			),
		)
	}
}

// RecordLLMRequest records an LLM provider request
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, model string, success bool, durationSeconds float64) {
	if m.LLMRequestsTotal != nil {
		m.LLMRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("provider", provider),
				attribute.String("model", model),
				attribute.Bool("success", success),
			),
		)
	}
	if m.LLMRequestDuration != nil {
		m.LLMRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(
				attribute.String("provider", provider),
				attribute.Bool("success", success),
			),
		)
	}
}

// RecordSCMRequest records a source control server request
func (m *Metrics) RecordSCMRequest(ctx context.Context, operation string, success bool, durationSeconds float64) {
	if m.SCMRequestsTotal != nil {
		m.SCMRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("operation", operation),
				attribute.Bool("success", success),
			),
		)
	}
	if m.SCMRequestDuration != nil {
		m.SCMRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(
				attribute.String("operation", operation),
				attribute.Bool("success", success),
			),
		)
	}
}

// RecordNotification records a notification delivery attempt
func (m *Metrics) RecordNotification(ctx context.Context, success bool) {
	if m.NotificationsTotal == nil {
		return
	}
	m.NotificationsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("success", success)),
	)
}
