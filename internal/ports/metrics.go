package ports

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordCounter increments a counter metric.
	// This is useful for tracking events like inference calls, record
	// failures, and retries.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like final evaluation scores,
	// queue depth, or active workers.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like inference latency
	// and per-stage processing time.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
