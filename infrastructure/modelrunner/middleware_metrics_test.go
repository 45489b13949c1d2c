package modelrunner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMetricsCollectorWithCapture wraps the shared mock to capture
// labels for inspection.
type mockMetricsCollectorWithCapture struct {
	*mockMetricsCollector
	onRecordHistogram func(metric string, value float64, labels map[string]string)
}

func (m *mockMetricsCollectorWithCapture) RecordHistogram(metric string, value float64, labels map[string]string) {
	if m.onRecordHistogram != nil {
		m.onRecordHistogram(metric, value, labels)
	}
	m.mockMetricsCollector.RecordHistogram(metric, value, labels)
}

func TestMetricsMiddleware_RecordsSuccessfulInvocations(t *testing.T) {
	mock := NewMockCoreModel()
	mock.Model = "gpt-4o-mini"
	metrics := newMockMetricsCollector()
	middleware := MetricsMiddleware(metrics)
	wrapped := middleware(mock)

	prediction, err := wrapped.Invoke(context.Background(), "test prompt")

	require.NoError(t, err, "request should succeed")
	require.NotNil(t, prediction.Output, "prediction should have output")

	latency, ok := metrics.histogram("model_inference_latency_seconds:openai")
	assert.True(t, ok, "should record latency histogram")
	assert.GreaterOrEqual(t, latency, 0.0, "latency should not be negative")

	assert.Equal(t, 1.0, metrics.counter("model_inference_requests_total:openai"),
		"should record request counter")
}

func TestMetricsMiddleware_RecordsFailedInvocations(t *testing.T) {
	mock := NewMockCoreModel()
	mock.Model = "claude-3-5-haiku-20241022"
	mock.Error = errors.New("service error")
	metrics := newMockMetricsCollector()
	middleware := MetricsMiddleware(metrics)
	wrapped := middleware(mock)

	_, err := wrapped.Invoke(context.Background(), "test prompt")

	require.Error(t, err, "request should fail")
	assert.Equal(t, "service error", err.Error(), "should return original error")

	_, ok := metrics.histogram("model_inference_latency_seconds:anthropic")
	assert.True(t, ok, "should record latency histogram for failures")
	assert.Equal(t, 1.0, metrics.counter("model_inference_requests_total:anthropic"),
		"should count failed requests")
}

func TestMetricsMiddleware_StatusLabelReflectsErrorCategory(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus string
	}{
		{"success", nil, "success"},
		{"generic error", errors.New("boom"), "error"},
		{
			"rate limit",
			NewProviderError("openai", ErrorTypeRateLimit, 429, "openai rate limit exceeded", nil),
			"rate_limit",
		},
		{
			"authentication",
			NewProviderError("openai", ErrorTypeAuthentication, 401, "openai authentication failed", nil),
			"authentication",
		},
		{
			"timeout",
			NewProviderError("google", ErrorTypeTimeout, 0, "context deadline exceeded", nil),
			"timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreModel()
			mock.Error = tt.err

			var capturedLabels map[string]string
			metrics := &mockMetricsCollectorWithCapture{
				mockMetricsCollector: newMockMetricsCollector(),
				onRecordHistogram: func(metric string, value float64, labels map[string]string) {
					capturedLabels = labels
				},
			}
			wrapped := MetricsMiddleware(metrics)(mock)

			_, _ = wrapped.Invoke(context.Background(), "test prompt")

			require.NotNil(t, capturedLabels, "should capture labels")
			assert.Equal(t, tt.expectedStatus, capturedLabels["status"], "status label should match")
		})
	}
}

func TestMetricsMiddleware_InfersProviderFromModel(t *testing.T) {
	tests := []struct {
		model            string
		expectedProvider string
	}{
		{"gpt-4o", "openai"},
		{"gpt-3.5-turbo", "openai"},
		{"claude-3-5-sonnet-20241022", "anthropic"},
		{"gemini-2.0-flash", "google"},
		{"custom-model", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expectedProvider, providerFromModel(tt.model))
		})
	}
}

func TestMetricsMiddleware_AccumulatesAcrossInvocations(t *testing.T) {
	mock := NewMockCoreModel()
	mock.Model = "gpt-4o-mini"
	metrics := newMockMetricsCollector()
	wrapped := MetricsMiddleware(metrics)(mock)

	for i := 0; i < 3; i++ {
		_, err := wrapped.Invoke(context.Background(), "test prompt")
		require.NoError(t, err, "request %d should succeed", i+1)
	}

	mock.Error = errors.New("service error")
	_, err := wrapped.Invoke(context.Background(), "test prompt")
	require.Error(t, err, "last request should fail")

	assert.Equal(t, 4.0, metrics.counter("model_inference_requests_total:openai"),
		"counter should include failed requests")
}

func TestMetricsMiddleware_NilCollector(t *testing.T) {
	mock := NewMockCoreModel()
	wrapped := MetricsMiddleware(nil)(mock)

	prediction, err := wrapped.Invoke(context.Background(), "test prompt")

	require.NoError(t, err, "request should succeed")
	require.NotNil(t, prediction.Output, "prediction should have output")
	assert.Equal(t, "test response", *prediction.Output, "response should match")
	assert.Equal(t, 1, mock.GetCallCount(), "should call underlying implementation")
}

func TestMetricsMiddleware_IncludesModelInLabels(t *testing.T) {
	mock := NewMockCoreModel()
	mock.Model = "gpt-4o"

	var capturedLabels map[string]string
	metrics := &mockMetricsCollectorWithCapture{
		mockMetricsCollector: newMockMetricsCollector(),
		onRecordHistogram: func(metric string, value float64, labels map[string]string) {
			capturedLabels = labels
		},
	}
	wrapped := MetricsMiddleware(metrics)(mock)

	_, err := wrapped.Invoke(context.Background(), "test prompt")

	require.NoError(t, err, "request should succeed")
	require.NotNil(t, capturedLabels, "should capture labels")
	assert.Equal(t, "gpt-4o", capturedLabels["model"], "should include model in labels")
	assert.Equal(t, "openai", capturedLabels["provider"], "should include provider in labels")
	assert.Equal(t, "success", capturedLabels["status"], "should include status in labels")
}

func TestMetricsMiddleware_PassesThroughGetModel(t *testing.T) {
	mock := NewMockCoreModel()
	wrapped := MetricsMiddleware(newMockMetricsCollector())(mock)

	assert.Equal(t, "test-model", wrapped.GetModel(), "should pass through GetModel")
}
