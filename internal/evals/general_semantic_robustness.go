package evals

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rubriq/appraise/infrastructure/transforms"
	"github.com/rubriq/appraise/internal/application"
	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// EvalGeneralSemanticRobustness is the registered name of the
// open-ended semantic robustness evaluation.
const EvalGeneralSemanticRobustness = "general_semantic_robustness"

// Score names produced by GeneralSemanticRobustness, in report order.
const (
	ScoreWordErrorRate          = "word_error_rate"
	ScoreBertScoreDissimilarity = "bertscore_dissimilarity"
)

// colBertScore prefixes the per-variant similarity columns.
const colBertScore = "bert_score"

func init() {
	Register(EvalGeneralSemanticRobustness, func(params *yaml.Node, deps Dependencies) (Algorithm, error) {
		config := DefaultGeneralSemanticRobustnessConfig()
		if err := decodeParams(params, &config); err != nil {
			return nil, err
		}
		return NewGeneralSemanticRobustness(config, deps)
	})
}

// GeneralSemanticRobustnessConfig configures the open-ended semantic
// robustness evaluation.
type GeneralSemanticRobustnessConfig struct {
	// PerturbationType selects the input corruption strategy.
	PerturbationType string `yaml:"perturbation_type" validate:"required"`

	// NumPerturbations is how many perturbed variants of each input
	// are generated and scored.
	NumPerturbations int `yaml:"num_perturbations" validate:"min=1"`

	// Perturbations carries the per-type corruption knobs.
	Perturbations transforms.PerturbationParams `yaml:",inline"`
}

// DefaultGeneralSemanticRobustnessConfig returns the configuration
// used when parameters are omitted.
func DefaultGeneralSemanticRobustnessConfig() GeneralSemanticRobustnessConfig {
	return GeneralSemanticRobustnessConfig{
		PerturbationType: transforms.PerturbationButterFinger,
		NumPerturbations: 5,
		Perturbations:    transforms.DefaultPerturbationParams(),
	}
}

// GeneralSemanticRobustness measures how much a model's free-form
// output drifts when its input is perturbed. Each input is corrupted
// into several variants; the variants' outputs are compared against
// the original output with word error rate and BERTScore
// dissimilarity. Both metrics are zero for a perfectly robust model.
//
// The evaluation only makes sense for deterministic models: with a
// sampling model, output drift cannot be attributed to the input
// perturbation. Determinism is verified before any scoring happens.
type GeneralSemanticRobustness struct {
	config  GeneralSemanticRobustnessConfig
	scorer  ports.SimilarityScorer
	metrics ports.MetricsCollector
	workers int
}

var _ Algorithm = (*GeneralSemanticRobustness)(nil)

// NewGeneralSemanticRobustness creates the algorithm from its
// configuration. A similarity scorer is required. Perturbation
// settings are validated eagerly so a bad type or probability fails
// before any dataset loads.
func NewGeneralSemanticRobustness(config GeneralSemanticRobustnessConfig, deps Dependencies) (*GeneralSemanticRobustness, error) {
	if deps.Scorer == nil {
		return nil, transforms.ErrNilScorer
	}
	if err := validate.Struct(config); err != nil {
		return nil, domain.NewConfigError("invalid %s config: %v", EvalGeneralSemanticRobustness, err)
	}
	if _, err := transforms.NewPerturbation(
		config.PerturbationType,
		domain.ColumnModelInput,
		indexedKeys(colPerturbedInput, config.NumPerturbations),
		config.Perturbations,
	); err != nil {
		return nil, err
	}

	return &GeneralSemanticRobustness{
		config:  config,
		scorer:  deps.Scorer,
		metrics: deps.Metrics,
		workers: deps.Workers,
	}, nil
}

// EvalName returns the algorithm's registered evaluation name.
func (g *GeneralSemanticRobustness) EvalName() string { return EvalGeneralSemanticRobustness }

func (g *GeneralSemanticRobustness) scoreColumns() []string {
	return []string{ScoreWordErrorRate, ScoreBertScoreDissimilarity}
}

// Evaluate runs the evaluation over the requested dataset, or over the
// algorithm's built-in datasets when the request names none. A model
// is always required since robustness is measured on live outputs.
func (g *GeneralSemanticRobustness) Evaluate(ctx context.Context, req EvaluateRequest) ([]domain.EvalOutput, error) {
	if req.Model == nil {
		return nil, domain.NewConfigError(
			"Missing required input: model i.e. ModelRunner, for GeneralSemanticRobustness evaluate")
	}
	return evaluateDatasets(ctx, g.EvalName(), req, g.metrics,
		func(ctx context.Context, cfg domain.DataConfig, promptTemplate, outputPath string) (*domain.EvalOutput, error) {
			return g.evaluateDataset(ctx, req, cfg, promptTemplate, outputPath)
		})
}

func (g *GeneralSemanticRobustness) evaluateDataset(
	ctx context.Context,
	req EvaluateRequest,
	cfg domain.DataConfig,
	promptTemplate, outputPath string,
) (*domain.EvalOutput, error) {
	ds, err := loadDataset(cfg, g.workers, req.NumRecords)
	if err != nil {
		return nil, err
	}
	if err := application.ValidateDataset(ds, []string{domain.ColumnModelInput}); err != nil {
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

	ds, err = application.GenerateModelPredictions(ctx, ds, req.Model, domain.ColumnPrompt, domain.ColumnModelOutput, "")
	if err != nil {
		return nil, err
	}

	pipeline, err := g.buildPipeline(req.Model, promptTemplate)
	if err != nil {
		return nil, err
	}
	scored, err := pipeline.Execute(ctx, ds)
	if err != nil {
		return nil, err
	}

	datasetScores, categoryScores, err := application.AggregateScores(ctx, scored, g.scoreColumns(), application.MethodMean)
	if err != nil {
		return nil, err
	}

	if req.Save {
		if err := application.SaveDataset(ctx, scored, g.scoreColumns(), outputPath); err != nil {
			return nil, err
		}
	}

	return domain.NewEvalOutput(domain.EvalOutput{
		EvalName:       g.EvalName(),
		DatasetName:    cfg.DatasetName,
		PromptTemplate: promptTemplate,
		DatasetScores:  datasetScores,
		CategoryScores: categoryScores,
		OutputPath:     outputPath,
	})
}

// EvaluateSample scores a single model input. The model is invoked on
// the original prompt twice to confirm determinism, then once per
// perturbed prompt. Scores are returned in scoreColumns order:
// word_error_rate, then bertscore_dissimilarity.
func (g *GeneralSemanticRobustness) EvaluateSample(
	ctx context.Context,
	model ports.ModelRunner,
	modelInput, promptTemplate string,
) ([]domain.EvalScore, error) {
	if model == nil {
		return nil, domain.NewConfigError(
			"Missing required input: model i.e. ModelRunner, for GeneralSemanticRobustness evaluate_sample")
	}
	if promptTemplate == "" {
		promptTemplate = fallbackPromptTemplate
	}

	record := domain.NewRecord(map[string]any{domain.ColumnModelInput: modelInput})
	composer, err := transforms.NewGeneratePrompt(
		[]string{domain.ColumnModelInput}, []string{domain.ColumnPrompt}, promptTemplate)
	if err != nil {
		return nil, err
	}
	record, err = composer.Apply(ctx, record)
	if err != nil {
		return nil, err
	}
	prompt, _ := domain.Get[string](record, domain.ColumnPrompt)

	first, err := model.Predict(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("sample prediction failed: %w", err)
	}
	second, err := model.Predict(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("sample prediction failed: %w", err)
	}
	if first.Output == nil || second.Output == nil {
		return nil, domain.NewInternalError("model runner returned no output for the sample prompt")
	}
	if *first.Output != *second.Output {
		return nil, domain.NewConfigError(msgNonDeterministicModel)
	}
	record = record.With(domain.ColumnModelOutput, *first.Output)

	pipeline, err := g.buildPipeline(model, promptTemplate)
	if err != nil {
		return nil, err
	}
	scored, err := pipeline.Apply(ctx, record)
	if err != nil {
		return nil, err
	}
	return extractScores(scored, g.scoreColumns())
}

// buildPipeline assembles the scoring stages run after the original
// model output exists: perturb the input, compose and invoke perturbed
// prompts, then compare each perturbed output against the original.
func (g *GeneralSemanticRobustness) buildPipeline(model ports.ModelRunner, promptTemplate string) (*application.TransformPipeline, error) {
	n := g.config.NumPerturbations
	perturbedInputs := indexedKeys(colPerturbedInput, n)
	perturbedPrompts := indexedKeys(colPerturbedPrompt, n)
	perturbedOutputs := indexedKeys(colPerturbedOutput, n)
	bertScores := indexedKeys(colBertScore, n)

	perturb, err := transforms.NewPerturbation(
		g.config.PerturbationType, domain.ColumnModelInput, perturbedInputs, g.config.Perturbations)
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

	similarity, err := transforms.NewBertScore(
		repeatKey(domain.ColumnModelOutput, n), perturbedOutputs, bertScores, g.scorer)
	if err != nil {
		return nil, err
	}

	dissimilarity, err := transforms.NewBertScoreDissimilarity(bertScores, ScoreBertScoreDissimilarity)
	if err != nil {
		return nil, err
	}

	wordErrorRate, err := transforms.NewWER(
		perturbedOutputs, repeatKey(domain.ColumnModelOutput, n), ScoreWordErrorRate, nil)
	if err != nil {
		return nil, err
	}

	return application.NewTransformPipeline([]ports.Transform{
		perturb, composePrompts, invoke, similarity, dissimilarity, wordErrorRate,
	}, application.WithMetrics(g.metrics))
}
