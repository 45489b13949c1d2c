package evals

import (
	"context"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/rubriq/appraise/infrastructure/transforms"
	"github.com/rubriq/appraise/internal/application"
	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// EvalClassificationAccuracy is the registered name of the
// classification accuracy evaluation.
const EvalClassificationAccuracy = "classification_accuracy"

// ScoreClassificationAccuracy is the binary per-row accuracy score.
const ScoreClassificationAccuracy = "classification_accuracy"

// colClassifiedOutput holds the label recognized in the model output.
const colClassifiedOutput = "classified_model_output"

func init() {
	Register(EvalClassificationAccuracy, func(params *yaml.Node, deps Dependencies) (Algorithm, error) {
		var config ClassificationAccuracyConfig
		if err := decodeParams(params, &config); err != nil {
			return nil, err
		}
		return NewClassificationAccuracy(config, nil, deps)
	})
}

// LabelList is a list of classification labels. Scalar YAML values of
// any type are coerced to their string form, so datasets labeled with
// integers work without quoting every value.
type LabelList []string

// UnmarshalYAML implements yaml.Unmarshaler with scalar coercion.
func (l *LabelList) UnmarshalYAML(value *yaml.Node) error {
	var raw []any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	labels := make([]string, len(raw))
	for i, v := range raw {
		labels[i] = fmt.Sprint(v)
	}
	*l = labels
	return nil
}

// ClassificationAccuracyConfig configures the classification accuracy
// evaluation.
type ClassificationAccuracyConfig struct {
	// ValidLabels lists the labels the model may answer with. When
	// empty, Evaluate infers them from the target column's distinct
	// values; EvaluateSample requires them.
	ValidLabels LabelList `yaml:"valid_labels"`
}

// ClassificationAccuracy scores a model's label predictions against a
// labeled dataset: each model output is resolved to one of the valid
// labels and compared with the target output, scoring 1.0 on a match
// and 0.0 otherwise. Datasets that already carry model outputs are
// scored without a model.
type ClassificationAccuracy struct {
	config    ClassificationAccuracyConfig
	converter transforms.LabelConverter
	metrics   ports.MetricsCollector
	workers   int
}

var _ Algorithm = (*ClassificationAccuracy)(nil)

// NewClassificationAccuracy creates the algorithm from its
// configuration. A nil converter selects the default word-matching
// label converter.
func NewClassificationAccuracy(
	config ClassificationAccuracyConfig,
	converter transforms.LabelConverter,
	deps Dependencies,
) (*ClassificationAccuracy, error) {
	if converter == nil {
		converter = transforms.ConvertModelOutputToLabel
	}
	return &ClassificationAccuracy{
		config:    config,
		converter: converter,
		metrics:   deps.Metrics,
		workers:   deps.Workers,
	}, nil
}

// EvalName returns the algorithm's registered evaluation name.
func (c *ClassificationAccuracy) EvalName() string { return EvalClassificationAccuracy }

func (c *ClassificationAccuracy) scoreColumns() []string {
	return []string{ScoreClassificationAccuracy}
}

// Evaluate runs the evaluation over the requested dataset, or over the
// algorithm's built-in datasets when the request names none. The model
// is invoked only for datasets without a model output column.
func (c *ClassificationAccuracy) Evaluate(ctx context.Context, req EvaluateRequest) ([]domain.EvalOutput, error) {
	return evaluateDatasets(ctx, c.EvalName(), req, c.metrics,
		func(ctx context.Context, cfg domain.DataConfig, promptTemplate, outputPath string) (*domain.EvalOutput, error) {
			return c.evaluateDataset(ctx, req, cfg, promptTemplate, outputPath)
		})
}

func (c *ClassificationAccuracy) evaluateDataset(
	ctx context.Context,
	req EvaluateRequest,
	cfg domain.DataConfig,
	promptTemplate, outputPath string,
) (*domain.EvalOutput, error) {
	ds, err := loadDataset(cfg, c.workers, req.NumRecords)
	if err != nil {
		return nil, err
	}
	if err := application.ValidateDataset(ds, []string{domain.ColumnTargetOutput, domain.ColumnModelInput}); err != nil {
		return nil, err
	}

	labels, err := c.resolveLabels(ctx, ds)
	if err != nil {
		return nil, err
	}

	// Precomputed model outputs skip prompt composition and inference
	// entirely; the output then reports no prompt template.
	reportedTemplate := ""
	if !slices.Contains(ds.Columns(), domain.ColumnModelOutput) {
		if req.Model == nil {
			return nil, domain.NewConfigError(
				"No ModelRunner provided. ModelRunner is required for inference on model_inputs")
		}
		reportedTemplate = promptTemplate
		ds, err = application.GeneratePromptColumn(ctx, ds, promptTemplate, domain.ColumnModelInput, domain.ColumnPrompt)
		if err != nil {
			return nil, err
		}
		ds, err = application.GenerateModelPredictions(ctx, ds, req.Model, domain.ColumnPrompt, domain.ColumnModelOutput, "")
		if err != nil {
			return nil, err
		}
	}

	classify, err := transforms.NewClassificationAccuracy(
		domain.ColumnTargetOutput, domain.ColumnModelOutput,
		colClassifiedOutput, ScoreClassificationAccuracy,
		labels, c.converter)
	if err != nil {
		return nil, err
	}
	pipeline, err := application.NewTransformPipeline(
		[]ports.Transform{classify}, application.WithMetrics(c.metrics))
	if err != nil {
		return nil, err
	}
	scored, err := pipeline.Execute(ctx, ds)
	if err != nil {
		return nil, err
	}

	datasetScores, categoryScores, err := application.AggregateScores(ctx, scored, c.scoreColumns(), application.MethodMean)
	if err != nil {
		return nil, err
	}

	if req.Save {
		if err := application.SaveDataset(ctx, scored, c.scoreColumns(), outputPath); err != nil {
			return nil, err
		}
	}

	return domain.NewEvalOutput(domain.EvalOutput{
		EvalName:       c.EvalName(),
		DatasetName:    cfg.DatasetName,
		PromptTemplate: reportedTemplate,
		DatasetScores:  datasetScores,
		CategoryScores: categoryScores,
		OutputPath:     outputPath,
	})
}

// EvaluateSample scores one target/model output pair. Valid labels
// must be configured since there is no dataset to infer them from.
func (c *ClassificationAccuracy) EvaluateSample(ctx context.Context, targetOutput, modelOutput string) ([]domain.EvalScore, error) {
	if len(c.config.ValidLabels) == 0 {
		return nil, domain.NewConfigError("valid labels must be configured for sample evaluation")
	}

	classify, err := transforms.NewClassificationAccuracy(
		domain.ColumnTargetOutput, domain.ColumnModelOutput,
		colClassifiedOutput, ScoreClassificationAccuracy,
		c.config.ValidLabels, c.converter)
	if err != nil {
		return nil, err
	}

	record := domain.NewRecord(map[string]any{
		domain.ColumnTargetOutput: targetOutput,
		domain.ColumnModelOutput:  modelOutput,
	})
	scored, err := classify.Apply(ctx, record)
	if err != nil {
		return nil, err
	}
	return extractScores(scored, c.scoreColumns())
}

// resolveLabels returns the configured labels, or the target column's
// distinct values when none are configured.
func (c *ClassificationAccuracy) resolveLabels(ctx context.Context, ds ports.Dataset) ([]string, error) {
	if len(c.config.ValidLabels) > 0 {
		return c.config.ValidLabels, nil
	}
	return ds.Unique(ctx, domain.ColumnTargetOutput)
}
