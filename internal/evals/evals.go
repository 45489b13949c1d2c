// Package evals provides the evaluation algorithms that orchestrate
// datasets, prompts, model invocation, and metric transforms into
// aggregated evaluation results.
//
// Each algorithm implements the Algorithm interface and registers
// itself under its evaluation name, so callers can construct algorithms
// from configuration without importing them individually. Algorithms
// evaluate whole datasets through Evaluate and single samples through
// per-algorithm EvaluateSample methods.
package evals

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/rubriq/appraise/infrastructure/dataset"
	"github.com/rubriq/appraise/internal/application"
	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// Package-level validator instance for algorithm configuration structs.
var validate = validator.New()

// determinismSampleLimit is how many dataset rows the robustness
// algorithms sample when verifying that the model is deterministic.
const determinismSampleLimit = 5

// msgNonDeterministicModel is the user-facing failure reported when a
// robustness evaluation is run against a sampling model.
const msgNonDeterministicModel = "For evaluating semantic robustness, the provided model must be deterministic."

// Intermediate column names shared by the robustness algorithms. They
// exist only while a pipeline runs; output records never carry them.
const (
	colPerturbedInput  = "perturbed_model_input"
	colPerturbedPrompt = "perturbed_prompt"
	colPerturbedOutput = "perturbed_model_output"
)

// Algorithm is one evaluation algorithm, evaluating datasets end to
// end: loading, prompt composition, model invocation, scoring, and
// aggregation.
type Algorithm interface {
	// EvalName returns the algorithm's registered evaluation name.
	EvalName() string

	// Evaluate runs the algorithm over the request's dataset, or over
	// the algorithm's built-in datasets when the request names none,
	// and returns one EvalOutput per dataset.
	Evaluate(ctx context.Context, req EvaluateRequest) ([]domain.EvalOutput, error)
}

// EvaluateRequest carries the per-run inputs of an evaluation. The
// zero value of every optional field selects the documented default;
// nothing is read from the environment here.
type EvaluateRequest struct {
	// Model is the model under evaluation. Algorithms that can score
	// precomputed model outputs tolerate a nil model.
	Model ports.ModelRunner

	// DataConfig selects the dataset to evaluate. Nil selects the
	// algorithm's built-in datasets.
	DataConfig *domain.DataConfig

	// PromptTemplate composes prompts from model inputs. Empty selects
	// the dataset's default template.
	PromptTemplate string

	// Save persists per-row results under ResultsDir when set.
	Save bool

	// NumRecords caps how many rows of each dataset are evaluated.
	// Zero or negative evaluates every row.
	NumRecords int

	// ResultsDir is the directory output paths are generated under.
	ResultsDir string
}

// Dependencies holds the shared collaborators injected into algorithms
// at construction. All fields except those an algorithm documents as
// required may be nil or zero.
type Dependencies struct {
	// Scorer computes semantic similarity for BERTScore-based metrics.
	Scorer ports.SimilarityScorer

	// Metrics receives per-stage pipeline metrics and final evaluation
	// scores. Nil disables recording.
	Metrics ports.MetricsCollector

	// Workers caps dataset row concurrency. Values below one keep the
	// engine default.
	Workers int
}

// loadDataset reads the configured dataset and caps it at limit rows.
func loadDataset(cfg domain.DataConfig, workers, limit int) (ports.Dataset, error) {
	ds, err := dataset.Load(cfg, dataset.WithWorkers(workers))
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		return ds.Limit(limit), nil
	}
	return ds, nil
}

// resolvePromptTemplate returns the template evaluations compose
// prompts with: the explicitly requested one when non-empty, otherwise
// the dataset's default.
func resolvePromptTemplate(requested, datasetName string) string {
	if requested != "" {
		return requested
	}
	return DefaultPromptTemplate(datasetName)
}

// evaluateOne evaluates a single dataset config, returning the built
// EvalOutput. The resolved prompt template and the generated output
// path are passed in so every algorithm reports them consistently.
type evaluateOne func(ctx context.Context, cfg domain.DataConfig, promptTemplate, outputPath string) (*domain.EvalOutput, error)

// evaluateDatasets runs evaluate once per dataset config and applies
// the shared failure policy: configuration errors abort the whole run,
// while any other per-dataset failure is reported through the output's
// Error field and the remaining datasets still run. Output paths are
// generated for every dataset whether or not results are saved.
func evaluateDatasets(
	ctx context.Context,
	evalName string,
	req EvaluateRequest,
	metrics ports.MetricsCollector,
	evaluate evaluateOne,
) ([]domain.EvalOutput, error) {
	configs, err := resolveDataConfigs(evalName, req.DataConfig)
	if err != nil {
		return nil, err
	}

	outputs := make([]domain.EvalOutput, 0, len(configs))
	for _, cfg := range configs {
		promptTemplate := resolvePromptTemplate(req.PromptTemplate, cfg.DatasetName)
		outputPath := application.GenerateOutputDatasetPath(req.ResultsDir, evalName, cfg.DatasetName)

		out, err := evaluate(ctx, cfg, promptTemplate, outputPath)
		if err != nil {
			var configErr *domain.ConfigError
			if errors.As(err, &configErr) {
				return nil, err
			}
			out = &domain.EvalOutput{
				EvalName:       evalName,
				DatasetName:    cfg.DatasetName,
				PromptTemplate: promptTemplate,
				OutputPath:     outputPath,
				Error:          err.Error(),
			}
		}

		publishScores(metrics, out)
		outputs = append(outputs, *out)
	}
	return outputs, nil
}

// publishScores records each dataset-level score as a gauge labeled by
// evaluation, dataset, and score name. Failed outputs publish nothing.
func publishScores(metrics ports.MetricsCollector, out *domain.EvalOutput) {
	if metrics == nil || out.Error != "" {
		return
	}
	for _, score := range out.DatasetScores {
		metrics.RecordGauge("evaluation_score", score.Value, map[string]string{
			"evaluation": out.EvalName,
			"dataset":    out.DatasetName,
			"score":      score.Name,
		})
	}
}

// indexedKeys builds n column names of the form prefix_i, used to fan
// one logical column out across perturbed variants.
func indexedKeys(prefix string, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s_%d", prefix, i)
	}
	return keys
}

// repeatKey returns the same key n times, for transforms that compare
// one baseline column against many variant columns.
func repeatKey(key string, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = key
	}
	return keys
}

// extractScores reads the named score columns off a scored record, in
// column order. A missing column is an invariant violation: sample
// pipelines declare their outputs up front.
func extractScores(record domain.Record, columns []string) ([]domain.EvalScore, error) {
	scores := make([]domain.EvalScore, 0, len(columns))
	for _, column := range columns {
		value, ok := domain.Number(record, column)
		if !ok {
			return nil, domain.NewInternalError("score column %q is missing from the scored record", column)
		}
		scores = append(scores, domain.EvalScore{Name: column, Value: value})
	}
	return scores, nil
}
