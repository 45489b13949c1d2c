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

// EvalClassificationAccuracySemanticRobustness is the registered name
// of the classification robustness evaluation.
const EvalClassificationAccuracySemanticRobustness = "classification_accuracy_semantic_robustness"

// ScoreDeltaClassificationAccuracy is the mean absolute accuracy drift
// across the perturbed variants of each input.
const ScoreDeltaClassificationAccuracy = "delta_classification_accuracy"

// Per-variant column prefixes used while the pipeline runs.
const (
	colPerturbedClassified = "perturbed_classified_model_output"
	colPerturbedAccuracy   = "perturbed_classification_accuracy"
)

func init() {
	Register(EvalClassificationAccuracySemanticRobustness, func(params *yaml.Node, deps Dependencies) (Algorithm, error) {
		config := DefaultClassificationAccuracySemanticRobustnessConfig()
		if err := decodeParams(params, &config); err != nil {
			return nil, err
		}
		return NewClassificationAccuracySemanticRobustness(config, nil, deps)
	})
}

// ClassificationAccuracySemanticRobustnessConfig configures the
// classification robustness evaluation.
type ClassificationAccuracySemanticRobustnessConfig struct {
	// ValidLabels lists the labels the model may answer with. When
	// empty, Evaluate infers them from the target column's distinct
	// values; EvaluateSample requires them.
	ValidLabels LabelList `yaml:"valid_labels"`

	// PerturbationType selects the input corruption strategy.
	PerturbationType string `yaml:"perturbation_type" validate:"required"`

	// NumPerturbations is how many perturbed variants of each input
	// are generated and scored.
	NumPerturbations int `yaml:"num_perturbations" validate:"min=1"`

	// Perturbations carries the per-type corruption knobs.
	Perturbations transforms.PerturbationParams `yaml:",inline"`
}

// DefaultClassificationAccuracySemanticRobustnessConfig returns the
// configuration used when parameters are omitted.
func DefaultClassificationAccuracySemanticRobustnessConfig() ClassificationAccuracySemanticRobustnessConfig {
	return ClassificationAccuracySemanticRobustnessConfig{
		PerturbationType: transforms.PerturbationButterFinger,
		NumPerturbations: 5,
		Perturbations:    transforms.DefaultPerturbationParams(),
	}
}

// ClassificationAccuracySemanticRobustness measures how stable a
// model's label predictions are under input perturbation. Each input
// is scored once as-is and once per perturbed variant; the evaluation
// reports the original accuracy and the mean absolute accuracy drift
// across the variants. The model is invoked once plus once per variant
// for every row, or variants only when the dataset already carries
// model outputs.
//
// Like all robustness evaluations it requires a deterministic model.
type ClassificationAccuracySemanticRobustness struct {
	config    ClassificationAccuracySemanticRobustnessConfig
	converter transforms.LabelConverter
	metrics   ports.MetricsCollector
	workers   int
}

var _ Algorithm = (*ClassificationAccuracySemanticRobustness)(nil)

// NewClassificationAccuracySemanticRobustness creates the algorithm
// from its configuration. A nil converter selects the default
// word-matching label converter. Perturbation settings are validated
// eagerly so a bad type or probability fails before any dataset loads.
func NewClassificationAccuracySemanticRobustness(
	config ClassificationAccuracySemanticRobustnessConfig,
	converter transforms.LabelConverter,
	deps Dependencies,
) (*ClassificationAccuracySemanticRobustness, error) {
	if err := validate.Struct(config); err != nil {
		return nil, domain.NewConfigError(
			"invalid %s config: %v", EvalClassificationAccuracySemanticRobustness, err)
	}
	if _, err := transforms.NewPerturbation(
		config.PerturbationType,
		domain.ColumnModelInput,
		indexedKeys(colPerturbedInput, config.NumPerturbations),
		config.Perturbations,
	); err != nil {
		return nil, err
	}
	if converter == nil {
		converter = transforms.ConvertModelOutputToLabel
	}

	return &ClassificationAccuracySemanticRobustness{
		config:    config,
		converter: converter,
		metrics:   deps.Metrics,
		workers:   deps.Workers,
	}, nil
}

// EvalName returns the algorithm's registered evaluation name.
func (c *ClassificationAccuracySemanticRobustness) EvalName() string {
	return EvalClassificationAccuracySemanticRobustness
}

func (c *ClassificationAccuracySemanticRobustness) scoreColumns() []string {
	return []string{ScoreClassificationAccuracy, ScoreDeltaClassificationAccuracy}
}

// Evaluate runs the evaluation over the requested dataset, or over the
// algorithm's built-in datasets when the request names none. A model
// is always required since the perturbed variants must be predicted
// live even when the dataset carries precomputed original outputs.
func (c *ClassificationAccuracySemanticRobustness) Evaluate(ctx context.Context, req EvaluateRequest) ([]domain.EvalOutput, error) {
	if req.Model == nil {
		return nil, domain.NewConfigError(
			"Missing required input: model i.e. ModelRunner, for ClassificationAccuracySemanticRobustness evaluate")
	}
	return evaluateDatasets(ctx, c.EvalName(), req, c.metrics,
		func(ctx context.Context, cfg domain.DataConfig, promptTemplate, outputPath string) (*domain.EvalOutput, error) {
			return c.evaluateDataset(ctx, req, cfg, promptTemplate, outputPath)
		})
}

func (c *ClassificationAccuracySemanticRobustness) evaluateDataset(
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

	ds, err = application.GeneratePromptColumn(ctx, ds, promptTemplate, domain.ColumnModelInput, domain.ColumnPrompt)
	if err != nil {
		return nil, err
	}

	deterministic, err := application.VerifyModelDeterminism(ctx, req.Model, ds, domain.ColumnPrompt, determinismSampleLimit)
	if err != nil {
		return nil, err
	}
	if !deterministic {
		return nil, domain.NewConfigError(msgNonDeterministicModel)
	}

	if !slices.Contains(ds.Columns(), domain.ColumnModelOutput) {
		ds, err = application.GenerateModelPredictions(ctx, ds, req.Model, domain.ColumnPrompt, domain.ColumnModelOutput, "")
		if err != nil {
			return nil, err
		}
	}

	pipeline, err := c.buildPipeline(req.Model, promptTemplate, labels)
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
		PromptTemplate: promptTemplate,
		DatasetScores:  datasetScores,
		CategoryScores: categoryScores,
		OutputPath:     outputPath,
	})
}

// EvaluateSample scores one labeled input. A nil modelOutput invokes
// the model once on the original prompt; the perturbed variants are
// always predicted live. Valid labels must be configured. Scores are
// returned in scoreColumns order: classification_accuracy, then
// delta_classification_accuracy.
func (c *ClassificationAccuracySemanticRobustness) EvaluateSample(
	ctx context.Context,
	model ports.ModelRunner,
	modelInput, targetOutput string,
	modelOutput *string,
	promptTemplate string,
) ([]domain.EvalScore, error) {
	if model == nil {
		return nil, domain.NewConfigError(
			"Missing required input: model i.e. ModelRunner, for ClassificationAccuracySemanticRobustness evaluate_sample")
	}
	if len(c.config.ValidLabels) == 0 {
		return nil, domain.NewConfigError("valid labels must be configured for sample evaluation")
	}
	if promptTemplate == "" {
		promptTemplate = fallbackPromptTemplate
	}

	record := domain.NewRecord(map[string]any{
		domain.ColumnModelInput:   modelInput,
		domain.ColumnTargetOutput: targetOutput,
	})
	composer, err := transforms.NewGeneratePrompt(
		[]string{domain.ColumnModelInput}, []string{domain.ColumnPrompt}, promptTemplate)
	if err != nil {
		return nil, err
	}
	record, err = composer.Apply(ctx, record)
	if err != nil {
		return nil, err
	}

	if modelOutput == nil {
		prompt, _ := domain.Get[string](record, domain.ColumnPrompt)
		prediction, err := model.Predict(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("sample prediction failed: %w", err)
		}
		if prediction.Output == nil {
			return nil, domain.NewInternalError("model runner returned no output for the sample prompt")
		}
		modelOutput = prediction.Output
	}
	record = record.With(domain.ColumnModelOutput, *modelOutput)

	pipeline, err := c.buildPipeline(model, promptTemplate, c.config.ValidLabels)
	if err != nil {
		return nil, err
	}
	scored, err := pipeline.Apply(ctx, record)
	if err != nil {
		return nil, err
	}
	return extractScores(scored, c.scoreColumns())
}

// resolveLabels returns the configured labels, or the target column's
// distinct values when none are configured.
func (c *ClassificationAccuracySemanticRobustness) resolveLabels(ctx context.Context, ds ports.Dataset) ([]string, error) {
	if len(c.config.ValidLabels) > 0 {
		return c.config.ValidLabels, nil
	}
	return ds.Unique(ctx, domain.ColumnTargetOutput)
}

// buildPipeline assembles the scoring stages run after the original
// model output exists: perturb the input, compose and invoke perturbed
// prompts, classify the original and every variant, then pool the
// per-variant accuracy drift.
func (c *ClassificationAccuracySemanticRobustness) buildPipeline(
	model ports.ModelRunner,
	promptTemplate string,
	labels []string,
) (*application.TransformPipeline, error) {
	n := c.config.NumPerturbations
	perturbedInputs := indexedKeys(colPerturbedInput, n)
	perturbedPrompts := indexedKeys(colPerturbedPrompt, n)
	perturbedOutputs := indexedKeys(colPerturbedOutput, n)
	perturbedClassified := indexedKeys(colPerturbedClassified, n)
	perturbedAccuracies := indexedKeys(colPerturbedAccuracy, n)

	perturb, err := transforms.NewPerturbation(
		c.config.PerturbationType, domain.ColumnModelInput, perturbedInputs, c.config.Perturbations)
	if err != nil {
		return nil, err
	}

	composePrompts, err := transforms.NewGeneratePrompt(perturbedInputs, perturbedPrompts, promptTemplate)
	if err != nil {
		return nil, err
	}

	specs := make([]transforms.InvocationSpec, n)
	for i := range specs {
		specs[i] = transforms.InvocationSpec{PromptKey: perturbedPrompts[i], OutputKey: perturbedOutputs[i]}
	}
	invoke, err := transforms.NewGetModelOutputs(specs, model)
	if err != nil {
		return nil, err
	}

	stages := []ports.Transform{perturb, composePrompts, invoke}

	classifyOriginal, err := transforms.NewClassificationAccuracy(
		domain.ColumnTargetOutput, domain.ColumnModelOutput,
		colClassifiedOutput, ScoreClassificationAccuracy,
		labels, c.converter)
	if err != nil {
		return nil, err
	}
	stages = append(stages, classifyOriginal)

	for i := 0; i < n; i++ {
		classifyVariant, err := transforms.NewClassificationAccuracy(
			domain.ColumnTargetOutput, perturbedOutputs[i],
			perturbedClassified[i], perturbedAccuracies[i],
			labels, c.converter)
		if err != nil {
			return nil, err
		}
		stages = append(stages, classifyVariant)
	}

	delta, err := transforms.NewMeanDelta(
		ScoreClassificationAccuracy, perturbedAccuracies, ScoreDeltaClassificationAccuracy)
	if err != nil {
		return nil, err
	}
	stages = append(stages, delta)

	return application.NewTransformPipeline(stages, application.WithMetrics(c.metrics))
}
