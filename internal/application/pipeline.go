// Package application orchestrates evaluation runs: it composes
// transforms into pipelines, executes them over datasets, aggregates
// score columns, and persists per-row results.
package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// pipelineTracerName identifies pipeline spans in trace output.
const pipelineTracerName = "appraise/pipeline"

// Compile-time verification that a pipeline can nest inside another.
var _ ports.Transform = (*TransformPipeline)(nil)

// PipelineOption configures a TransformPipeline at construction.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	allowDuplicateOutputKeys bool
	metrics                  ports.MetricsCollector
}

// WithDuplicateOutputKeys permits a transform to re-register an output
// key an earlier stage already produces. Robustness evaluations rely on
// this to overwrite intermediate columns in place.
func WithDuplicateOutputKeys() PipelineOption {
	return func(cfg *pipelineConfig) { cfg.allowDuplicateOutputKeys = true }
}

// WithMetrics attaches a collector that records per-stage durations and
// record counts. A nil collector disables recording.
func WithMetrics(collector ports.MetricsCollector) PipelineOption {
	return func(cfg *pipelineConfig) { cfg.metrics = collector }
}

// TransformPipeline is a sequential execution container for transforms,
// where each stage's output columns become available to later stages.
// A pipeline is immutable after construction and itself satisfies
// ports.Transform, so pipelines nest: a nested pipeline's stages are
// flattened into the outer sequence at construction time.
type TransformPipeline struct {
	transforms []ports.Transform
	inputKeys  []string
	outputKeys []string
	metrics    ports.MetricsCollector
	tracer     trace.Tracer
}

// NewTransformPipeline composes transforms into a pipeline, flattening
// any nested pipelines. Construction fails with ConfigError when a
// stage is nil or when an output key collides with one an earlier stage
// already produces, unless WithDuplicateOutputKeys allows it.
func NewTransformPipeline(transforms []ports.Transform, opts ...PipelineOption) (*TransformPipeline, error) {
	var cfg pipelineConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &TransformPipeline{
		metrics: cfg.metrics,
		tracer:  otel.Tracer(pipelineTracerName),
	}

	produced := make(map[string]string)
	seenInputs := make(map[string]struct{})
	for i, t := range transforms {
		if t == nil {
			return nil, domain.NewConfigError("transform at position %d is nil", i)
		}

		stages := []ports.Transform{t}
		if nested, ok := t.(*TransformPipeline); ok {
			stages = nested.transforms
		}

		for _, stage := range stages {
			for _, key := range stage.InputKeys() {
				if _, isProduced := produced[key]; isProduced {
					continue
				}
				if _, seen := seenInputs[key]; seen {
					continue
				}
				seenInputs[key] = struct{}{}
				p.inputKeys = append(p.inputKeys, key)
			}
			for _, key := range stage.OutputKeys() {
				if owner, exists := produced[key]; exists {
					if !cfg.allowDuplicateOutputKeys {
						return nil, domain.NewConfigError(
							"transform %q declares output key %q, which is already produced by transform %q",
							stage.Name(), key, owner,
						)
					}
					continue
				}
				produced[key] = stage.Name()
				p.outputKeys = append(p.outputKeys, key)
			}
			p.transforms = append(p.transforms, stage)
		}
	}

	return p, nil
}

// Name identifies the pipeline in error messages and traces.
func (p *TransformPipeline) Name() string { return "transform_pipeline" }

// InputKeys returns the keys the pipeline reads from records that no
// earlier stage produces, in first-use order.
func (p *TransformPipeline) InputKeys() []string { return p.inputKeys }

// OutputKeys returns every key the pipeline's stages produce, in
// first-write order.
func (p *TransformPipeline) OutputKeys() []string { return p.outputKeys }

// Transforms returns the flattened stage sequence. The returned slice
// is safe to modify without affecting the pipeline.
func (p *TransformPipeline) Transforms() []ports.Transform {
	stages := make([]ports.Transform, len(p.transforms))
	copy(stages, p.transforms)
	return stages
}

// Apply runs every stage sequentially against a single record,
// threading each stage's output record into the next. Cancellation is
// observed between stages.
func (p *TransformPipeline) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	current := record
	for _, t := range p.transforms {
		select {
		case <-ctx.Done():
			return domain.Record{}, ctx.Err()
		default:
		}

		next, err := t.Apply(ctx, current)
		if err != nil {
			return domain.Record{}, fmt.Errorf("pipeline execution failed at %s: %w", t.Name(), err)
		}
		current = next
	}
	return current, nil
}

// Execute maps each stage over the whole dataset in order, letting the
// engine parallelize rows within a stage. Cancellation is observed
// between stages; the first failing stage aborts the run.
func (p *TransformPipeline) Execute(ctx context.Context, ds ports.Dataset) (ports.Dataset, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.Int("pipeline.stages", len(p.transforms)),
		attribute.Int("dataset.rows", ds.Len()),
	))
	defer span.End()

	current := ds
	for _, t := range p.transforms {
		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, ctx.Err().Error())
			return nil, ctx.Err()
		default:
		}

		next, err := p.executeStage(ctx, t, current)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		current = next
	}

	span.SetStatus(codes.Ok, "")
	return current, nil
}

// executeStage maps one transform over the dataset, recording its span
// and metrics.
func (p *TransformPipeline) executeStage(ctx context.Context, t ports.Transform, ds ports.Dataset) (ports.Dataset, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("stage.name", t.Name()),
		attribute.Int("dataset.rows", ds.Len()),
	))
	defer span.End()

	start := time.Now()
	next, err := ds.Map(ctx, t.Apply)
	p.recordStage(t.Name(), ds.Len(), time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("pipeline execution failed at %s: %w", t.Name(), err)
	}
	span.SetStatus(codes.Ok, "")
	return next, nil
}

func (p *TransformPipeline) recordStage(stage string, rows int, elapsed time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	labels := map[string]string{"stage": stage, "status": status}
	p.metrics.RecordHistogram("transform_stage_duration_seconds", elapsed.Seconds(), labels)
	p.metrics.RecordCounter("transform_records_total", float64(rows), labels)
}
