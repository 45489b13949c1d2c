package application

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rubriq/appraise/internal/domain"
)

// validate checks run-configuration structs against their struct tags.
var validate = validator.New()

// RunConfig is the YAML contract for a single evaluation run: which
// model to call, which algorithm to execute, and which datasets to
// evaluate it on. The CLI loads one RunConfig per invocation; nothing
// in this package reads the environment.
type RunConfig struct {
	// Model selects and tunes the model runner. It may be omitted for
	// algorithms that score precomputed model outputs carried by the
	// dataset itself.
	Model *ModelRunConfig `yaml:"model" validate:"omitempty"`

	// Algorithm names the evaluation algorithm and carries its
	// algorithm-specific parameters.
	Algorithm AlgorithmRunConfig `yaml:"algorithm" validate:"required"`

	// Datasets lists the datasets to evaluate. When empty, the
	// algorithm falls back to its registered built-in datasets.
	Datasets []domain.DataConfig `yaml:"datasets" validate:"omitempty,dive"`

	// PromptTemplate overrides the per-dataset default template. The
	// $model_input placeholder is replaced with each record's input.
	PromptTemplate string `yaml:"prompt_template"`

	// NumRecords caps how many records of each dataset are evaluated.
	// Zero evaluates every record.
	NumRecords int `yaml:"num_records" validate:"omitempty,min=1"`

	// Workers bounds dataset parallelism. Zero lets the dataset layer
	// pick a default based on available CPUs.
	Workers int `yaml:"workers" validate:"omitempty,min=1,max=256"`

	// Save persists per-record results as JSON Lines under the results
	// directory.
	Save bool `yaml:"save"`

	// ResultsDir overrides where results are written. When empty the
	// CLI resolves the directory from its flags and environment.
	ResultsDir string `yaml:"results_dir"`
}

// ModelRunConfig selects a model runner and tunes the middleware the
// CLI wraps around it.
type ModelRunConfig struct {
	// Spec identifies the model as "provider" or "provider/model",
	// resolved through the model runner registry.
	Spec string `yaml:"spec" validate:"required,min=1"`

	// Temperature pins the sampling temperature. Robustness
	// evaluations set it to zero; nil keeps the provider default.
	Temperature *float64 `yaml:"temperature" validate:"omitempty,min=0,max=2"`

	// TimeoutSeconds bounds each inference request.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"omitempty,min=1,max=3600"`

	// RequestsPerSecond throttles inference calls across all workers.
	// Zero disables rate limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"omitempty,gt=0"`

	// MaxRetries caps retry attempts for transient provider failures.
	MaxRetries int `yaml:"max_retries" validate:"omitempty,min=0,max=10"`
}

// AlgorithmRunConfig names an algorithm and forwards its parameters.
type AlgorithmRunConfig struct {
	// Name is the registered algorithm name, e.g.
	// "general_semantic_robustness".
	Name string `yaml:"name" validate:"required,min=1"`

	// Params holds algorithm-specific parameters as raw YAML. The
	// algorithm registry decodes them strictly against the named
	// algorithm's config struct.
	Params yaml.Node `yaml:"params"`
}

// LoadRunConfig reads, parses, and validates a run configuration file.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is a caller-supplied config file
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}

	return parseRunConfig(data)
}

// ParseRunConfig parses and validates a run configuration from any
// reader, supporting stdin-driven invocations and tests.
func ParseRunConfig(r io.Reader) (*RunConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}

	return parseRunConfig(data)
}

// parseRunConfig decodes YAML in strict mode so configuration typos
// surface as errors instead of being silently ignored, then applies
// struct and semantic validation.
func parseRunConfig(data []byte) (*RunConfig, error) {
	var config RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("struct validation failed: %w", err)
	}

	if err := validateRunSemantics(&config); err != nil {
		return nil, fmt.Errorf("semantic validation failed: %w", err)
	}

	return &config, nil
}

// validateRunSemantics enforces rules struct tags cannot express.
// Dataset names must be unique because each dataset's results land in
// a file named after it; duplicates would silently overwrite.
func validateRunSemantics(config *RunConfig) error {
	seen := make(map[string]struct{}, len(config.Datasets))
	for _, dc := range config.Datasets {
		if _, exists := seen[dc.DatasetName]; exists {
			return fmt.Errorf("duplicate dataset name %q", dc.DatasetName)
		}
		seen[dc.DatasetName] = struct{}{}
	}

	return nil
}
