package modelrunner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// meteredModel collects latency and request-count metrics per
// invocation, labeled by provider, model, and outcome.
type meteredModel struct {
	next      CoreModel
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that records invocation metrics
// through the given collector. A nil collector disables recording
// without changing behavior.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreModel) CoreModel {
		return &meteredModel{
			next:      next,
			collector: collector,
		}
	}
}

// Invoke executes the invocation and records its latency and outcome.
func (m *meteredModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	start := time.Now()
	prediction, err := m.next.Invoke(ctx, prompt)

	labels := map[string]string{
		"provider": providerFromModel(m.next.GetModel()),
		"model":    m.next.GetModel(),
		"status":   statusLabel(err),
	}

	if m.collector != nil {
		m.collector.RecordHistogram("model_inference_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("model_inference_requests_total", 1, labels)
	}

	return prediction, err
}

// statusLabel maps an invocation outcome to a bounded metric label.
// Classified provider errors report their category; anything else is a
// generic error.
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Type.String()
	}
	return "error"
}

// providerFromModel infers the provider from the model name.
func providerFromModel(model string) string {
	switch {
	case strings.Contains(model, "gpt"):
		return "openai"
	case strings.Contains(model, "claude"):
		return "anthropic"
	case strings.Contains(model, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}

// GetModel returns the model name from the wrapped implementation.
func (m *meteredModel) GetModel() string { return m.next.GetModel() }
