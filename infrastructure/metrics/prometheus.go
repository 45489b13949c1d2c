// Package metrics provides the Prometheus-backed implementation of the
// evaluation engine's metrics collection port.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rubriq/appraise/internal/ports"
)

// Compile-time verification that PrometheusCollector implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusCollector)(nil)

// inferenceLatencyBuckets covers the latency range of hosted model calls,
// from sub-second cache hits to multi-minute long-form generations.
var inferenceLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// PrometheusCollector implements the MetricsCollector interface using
// Prometheus. Well-known metric names are routed to dedicated vectors with
// meaningful label sets; everything else lands in generic operation vectors
// so unrecognized metrics are never silently dropped.
type PrometheusCollector struct {
	inferenceLatency  *prometheus.HistogramVec
	inferenceRequests *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	stageRecords      *prometheus.CounterVec
	evaluationScores  *prometheus.GaugeVec
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	systemGauges      *prometheus.GaugeVec
}

// NewPrometheusCollector creates a PrometheusCollector and registers its
// metrics with reg. A nil reg registers with the default global registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		inferenceLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_inference_latency_seconds",
				Help:    "Latency of model inference calls.",
				Buckets: inferenceLatencyBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		inferenceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_inference_requests_total",
				Help: "Total number of model inference calls.",
			},
			[]string{"provider", "model", "status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transform_stage_duration_seconds",
				Help:    "Time spent applying a single transform stage to a dataset.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		stageRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transform_records_total",
				Help: "Total number of records processed by transform stages.",
			},
			[]string{"stage", "status"},
		),
		evaluationScores: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "evaluation_score",
				Help: "Most recent aggregate score per evaluation, dataset, and score name.",
			},
			[]string{"evaluation", "dataset", "score"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appraise_operations_total",
				Help: "Total number of engine operations by name and status.",
			},
			[]string{"operation", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appraise_operation_duration_seconds",
				Help:    "Duration of engine operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "appraise_system_state",
				Help: "Current system state values for the evaluation engine.",
			},
			[]string{"metric"},
		),
	}
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pc *PrometheusCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "model_inference_requests_total":
		pc.inferenceRequests.WithLabelValues(
			labelOr(labels, "provider"),
			labelOr(labels, "model"),
			labelOr(labels, "status"),
		).Add(value)
	case "transform_records_total":
		pc.stageRecords.WithLabelValues(
			labelOr(labels, "stage"),
			labelOr(labels, "status"),
		).Add(value)
	default:
		pc.operationCounter.WithLabelValues(metric, labelOr(labels, "status")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pc *PrometheusCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case "evaluation_score":
		pc.evaluationScores.WithLabelValues(
			labelOr(labels, "evaluation"),
			labelOr(labels, "dataset"),
			labelOr(labels, "score"),
		).Set(value)
	default:
		pc.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in Prometheus histograms.
func (pc *PrometheusCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "model_inference_latency_seconds":
		pc.inferenceLatency.WithLabelValues(
			labelOr(labels, "provider"),
			labelOr(labels, "model"),
			labelOr(labels, "status"),
		).Observe(value)
	case "transform_stage_duration_seconds":
		pc.stageDuration.WithLabelValues(labelOr(labels, "stage")).Observe(value)
	default:
		pc.operationDuration.WithLabelValues(metric).Observe(value)
	}
}

// labelOr returns the label's value, or "unknown" when the label is
// missing or empty. Prometheus vectors reject missing label values, so
// sparse label maps must be filled in before recording.
func labelOr(labels map[string]string, key string) string {
	if value := labels[key]; value != "" {
		return value
	}
	return "unknown"
}
