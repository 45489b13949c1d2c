package evals

import "github.com/rubriq/appraise/internal/domain"

// Built-in dataset names.
const (
	// DatasetTriviaQA is a question answering dataset used by the
	// open-ended robustness evaluation.
	DatasetTriviaQA = "trivia_qa"

	// DatasetWomensClothingReviews is a labeled sentiment dataset used
	// by the classification evaluations.
	DatasetWomensClothingReviews = "womens_clothing_ecommerce_reviews"
)

// fallbackPromptTemplate passes the model input through unchanged. It
// is used whenever no template is configured and the dataset registers
// no default.
const fallbackPromptTemplate = "$model_input"

// builtinDataConfigs maps each built-in dataset name to its loading
// configuration. URIs are relative so runs resolve them against the
// working directory; `appraise gendataset` writes matching files.
var builtinDataConfigs = map[string]domain.DataConfig{
	DatasetTriviaQA: {
		DatasetName:          DatasetTriviaQA,
		DatasetURI:           "datasets/trivia_qa.jsonl",
		DatasetMIMEType:      domain.MIMETypeJSONLines,
		ModelInputLocation:   "question",
		TargetOutputLocation: "answer",
	},
	DatasetWomensClothingReviews: {
		DatasetName:          DatasetWomensClothingReviews,
		DatasetURI:           "datasets/womens_clothing_ecommerce_reviews.jsonl",
		DatasetMIMEType:      domain.MIMETypeJSONLines,
		ModelInputLocation:   "review_text",
		TargetOutputLocation: "recommended_ind",
		CategoryLocation:     "class_name",
	},
}

// defaultPromptTemplates maps built-in dataset names to the prompt
// template their evaluations use when the caller configures none.
var defaultPromptTemplates = map[string]string{
	DatasetTriviaQA:              "Respond to the following question with a short answer: $model_input",
	DatasetWomensClothingReviews: "Classify the sentiment of the following review with 0 (negative sentiment) or 1 (positive sentiment). Review: $model_input. Classification:",
}

// evalDatasets maps each evaluation name to the built-in datasets it
// runs over when a request names no dataset.
var evalDatasets = map[string][]string{
	EvalGeneralSemanticRobustness:                {DatasetTriviaQA},
	EvalClassificationAccuracy:                   {DatasetWomensClothingReviews},
	EvalClassificationAccuracySemanticRobustness: {DatasetWomensClothingReviews},
}

// DefaultPromptTemplate returns the prompt template registered for a
// built-in dataset, or the pass-through template for any other name.
func DefaultPromptTemplate(datasetName string) string {
	if template, ok := defaultPromptTemplates[datasetName]; ok {
		return template
	}
	return fallbackPromptTemplate
}

// BuiltinDataConfig returns the loading configuration of a built-in
// dataset by name.
func BuiltinDataConfig(datasetName string) (domain.DataConfig, bool) {
	cfg, ok := builtinDataConfigs[datasetName]
	return cfg, ok
}

// resolveDataConfigs returns the datasets an evaluation runs over: the
// explicitly requested one when non-nil, otherwise the evaluation's
// registered built-ins.
func resolveDataConfigs(evalName string, cfg *domain.DataConfig) ([]domain.DataConfig, error) {
	if cfg != nil {
		return []domain.DataConfig{*cfg}, nil
	}

	names := evalDatasets[evalName]
	if len(names) == 0 {
		return nil, domain.NewConfigError(
			"no built-in datasets are registered for evaluation %q; provide a dataset config", evalName)
	}

	configs := make([]domain.DataConfig, 0, len(names))
	for _, name := range names {
		builtin, ok := builtinDataConfigs[name]
		if !ok {
			return nil, domain.NewInternalError(
				"evaluation %q references unregistered built-in dataset %q", evalName, name)
		}
		configs = append(configs, builtin)
	}
	return configs, nil
}
