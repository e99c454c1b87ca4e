// Package telemetry provides OpenTelemetry integration for the application.
// This file contains unit tests for the metrics.
package telemetry

import (
	"context"
	"testing"
)

// TestGetMetrics tests the GetMetrics function
func TestGetMetrics(t *testing.T) {
	metrics := GetMetrics()
	if metrics == nil {
		t.Fatal("GetMetrics() returned nil")
	}

	// Second call should return same instance
	metrics2 := GetMetrics()
	if metrics != metrics2 {
		t.Error("GetMetrics() returned different instances on subsequent calls")
	}
}

// TestMetricsRecordJobEnqueued tests RecordJobEnqueued
func TestMetricsRecordJobEnqueued(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic even if metrics are nil/empty
	metrics.RecordJobEnqueued(ctx, "commit", "webhook")
	metrics.RecordJobEnqueued(ctx, "merge_request", "webhook")
}

// TestMetricsRecordJobRejected tests RecordJobRejected
func TestMetricsRecordJobRejected(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordJobRejected(ctx, "commit")
}

// TestMetricsRecordJobDequeued tests RecordJobDequeued
func TestMetricsRecordJobDequeued(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordJobDequeued(ctx)
}

// TestMetricsRecordReviewCompleted tests RecordReviewCompleted
func TestMetricsRecordReviewCompleted(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordReviewCompleted(ctx, "webhook", "success", 10.5)
	metrics.RecordReviewCompleted(ctx, "manual", "failed", 3.2)
}

// TestMetricsRecordStageFailure tests RecordStageFailure
func TestMetricsRecordStageFailure(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordStageFailure(ctx, "diff_fetch", "not_found")
	metrics.RecordStageFailure(ctx, "llm_invocation", "timeout")
}

// TestMetricsRecordHTTPRequest tests RecordHTTPRequest
func TestMetricsRecordHTTPRequest(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/reviews", 200, 0.05)
	metrics.RecordHTTPRequest(ctx, "POST", "/webhook/code-review", 202, 0.1)
	metrics.RecordHTTPRequest(ctx, "GET", "/reviews/123", 404, 0.01)
}

// TestMetricsRecordLLMRequest tests RecordLLMRequest
func TestMetricsRecordLLMRequest(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordLLMRequest(ctx, "hosted_chat", "gpt-4o-mini", true, 12.5)
	metrics.RecordLLMRequest(ctx, "local_model_server", "codellama", false, 60.0)
}

// TestMetricsRecordSCMRequest tests RecordSCMRequest
func TestMetricsRecordSCMRequest(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordSCMRequest(ctx, "commit_diff", true, 0.8)
	metrics.RecordSCMRequest(ctx, "pull_request_diff", false, 30.0)
}

// TestMetricsRecordNotification tests RecordNotification
func TestMetricsRecordNotification(t *testing.T) {
	metrics := GetMetrics()
	ctx := context.Background()

	// Should not panic
	metrics.RecordNotification(ctx, true)
	metrics.RecordNotification(ctx, false)
}

// TestMetricsNilSafe tests that metrics methods are nil-safe
func TestMetricsNilSafe(t *testing.T) {
	// Create empty metrics struct (simulating initialization failure)
	emptyMetrics := &Metrics{}
	ctx := context.Background()

	// None of these should panic
	t.Run("RecordJobEnqueued", func(t *testing.T) {
		emptyMetrics.RecordJobEnqueued(ctx, "commit", "webhook")
	})

	t.Run("RecordJobRejected", func(t *testing.T) {
		emptyMetrics.RecordJobRejected(ctx, "commit")
	})

	t.Run("RecordJobDequeued", func(t *testing.T) {
		emptyMetrics.RecordJobDequeued(ctx)
	})

	t.Run("RecordReviewCompleted", func(t *testing.T) {
		emptyMetrics.RecordReviewCompleted(ctx, "webhook", "success", 1.0)
	})

	t.Run("RecordStageFailure", func(t *testing.T) {
		emptyMetrics.RecordStageFailure(ctx, "diff_fetch", "transport")
	})

	t.Run("RecordHTTPRequest", func(t *testing.T) {
		emptyMetrics.RecordHTTPRequest(ctx, "GET", "/test", 200, 0.1)
	})

	t.Run("RecordLLMRequest", func(t *testing.T) {
		emptyMetrics.RecordLLMRequest(ctx, "hosted_chat", "gpt-4o-mini", true, 1.0)
	})

	t.Run("RecordSCMRequest", func(t *testing.T) {
		emptyMetrics.RecordSCMRequest(ctx, "commit_diff", true, 1.0)
	})

	t.Run("RecordNotification", func(t *testing.T) {
		emptyMetrics.RecordNotification(ctx, true)
	})
}
