package transforms

import (
	"context"
	"fmt"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// InvocationSpec pairs one prompt key with the record keys receiving the
// model's response fields. LogProbKey may be empty when the log probability
// is not needed; OutputKey is always required.
type InvocationSpec struct {
	PromptKey  string
	OutputKey  string
	LogProbKey string
}

var _ ports.Transform = (*GetModelOutputs)(nil)

// GetModelOutputs invokes the model under evaluation once per invocation
// spec, in declaration order, and writes the response fields into the
// record. The runner is a long-lived collaborator, typically a pooled
// worker; GetModelOutputs never constructs or closes it.
type GetModelOutputs struct {
	specs  []InvocationSpec
	runner ports.ModelRunner
}

// NewGetModelOutputs creates a GetModelOutputs for the given invocation
// specs. Prompt keys may repeat across specs so one prompt can be invoked
// several times; output and log-probability keys must be unique.
func NewGetModelOutputs(specs []InvocationSpec, runner ports.ModelRunner) (*GetModelOutputs, error) {
	if runner == nil {
		return nil, ErrNilModelRunner
	}
	if len(specs) == 0 {
		return nil, domain.NewConfigError("invocation specs cannot be empty")
	}

	promptKeys := make([]string, 0, len(specs))
	outputKeys := make([]string, 0, len(specs))
	for _, spec := range specs {
		promptKeys = append(promptKeys, spec.PromptKey)
		outputKeys = append(outputKeys, spec.OutputKey)
		if spec.LogProbKey != "" {
			outputKeys = append(outputKeys, spec.LogProbKey)
		}
	}
	if err := validateInputKeys("prompt_keys", promptKeys, true); err != nil {
		return nil, err
	}
	if err := validateOutputKeys("output_keys", outputKeys); err != nil {
		return nil, err
	}

	return &GetModelOutputs{specs: specs, runner: runner}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (gmo *GetModelOutputs) Name() string { return "get_model_outputs" }

// InputKeys returns the prompt keys in invocation order.
func (gmo *GetModelOutputs) InputKeys() []string {
	keys := make([]string, len(gmo.specs))
	for i, spec := range gmo.specs {
		keys[i] = spec.PromptKey
	}
	return keys
}

// OutputKeys returns the output keys followed by any log-probability keys,
// in invocation order.
func (gmo *GetModelOutputs) OutputKeys() []string {
	keys := make([]string, 0, len(gmo.specs))
	for _, spec := range gmo.specs {
		keys = append(keys, spec.OutputKey)
		if spec.LogProbKey != "" {
			keys = append(keys, spec.LogProbKey)
		}
	}
	return keys
}

// Apply invokes the model once per invocation spec and writes the declared
// response fields. A runner that omits a declared field breaks the
// transform's output contract and is reported as an invariant violation.
// The first invocation failure aborts the row.
func (gmo *GetModelOutputs) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(gmo.Name(), gmo.InputKeys(), record); err != nil {
		return domain.Record{}, err
	}

	result := record
	for _, spec := range gmo.specs {
		prompt, err := stringValue(gmo.Name(), spec.PromptKey, record)
		if err != nil {
			return domain.Record{}, err
		}

		prediction, err := gmo.runner.Predict(ctx, prompt)
		if err != nil {
			return domain.Record{}, fmt.Errorf("model invocation for key %q failed: %w", spec.OutputKey, err)
		}

		if prediction.Output == nil {
			return domain.Record{}, domain.NewInternalError(
				"model runner returned no output for declared key %q", spec.OutputKey)
		}
		result = result.With(spec.OutputKey, *prediction.Output)

		if spec.LogProbKey != "" {
			if prediction.LogProbability == nil {
				return domain.Record{}, domain.NewInternalError(
					"model runner returned no log probability for declared key %q", spec.LogProbKey)
			}
			result = result.With(spec.LogProbKey, *prediction.LogProbability)
		}
	}

	return result, nil
}
