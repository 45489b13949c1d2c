package transforms

import (
	"context"
	"os"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// PromptPlaceholder is the template variable substituted with the input text
// when composing prompts, written as $model_input or ${model_input}.
const PromptPlaceholder = "model_input"

var _ ports.Transform = (*GeneratePrompt)(nil)

// GeneratePrompt composes prompts by substituting record values into a
// prompt template. The kth input key's value replaces the $model_input
// placeholder and the result is written under the kth output key, so one
// template serves both original and perturbed input columns.
type GeneratePrompt struct {
	inputKeys  []string
	outputKeys []string
	template   string
}

// NewGeneratePrompt creates a GeneratePrompt for the given template.
// The template may reference only the $model_input placeholder; unknown
// placeholders are a configuration error. A template without placeholders
// composes to itself for every row.
func NewGeneratePrompt(inputKeys, outputKeys []string, promptTemplate string) (*GeneratePrompt, error) {
	if err := validateInputKeys("input_keys", inputKeys, false); err != nil {
		return nil, err
	}
	if err := validateOutputKeys("output_keys", outputKeys); err != nil {
		return nil, err
	}
	if len(inputKeys) != len(outputKeys) {
		return nil, domain.NewConfigError(
			"input_keys and output_keys should have the same number of elements. input_keys has %d elements while output_keys has %d elements",
			len(inputKeys), len(outputKeys))
	}
	for _, name := range templatePlaceholders(promptTemplate) {
		if name != PromptPlaceholder {
			return nil, domain.NewConfigError(
				"prompt template references unknown placeholder %q, only $%s is supported", name, PromptPlaceholder)
		}
	}

	return &GeneratePrompt{
		inputKeys:  inputKeys,
		outputKeys: outputKeys,
		template:   promptTemplate,
	}, nil
}

// Name returns the transform identifier used in error messages and traces.
func (gp *GeneratePrompt) Name() string { return "generate_prompt" }

// InputKeys returns the keys holding the texts to compose prompts from.
// The returned slice should not be modified by callers.
func (gp *GeneratePrompt) InputKeys() []string { return gp.inputKeys }

// OutputKeys returns the keys the composed prompts are written to.
// The returned slice should not be modified by callers.
func (gp *GeneratePrompt) OutputKeys() []string { return gp.outputKeys }

// Apply writes one composed prompt per input key.
func (gp *GeneratePrompt) Apply(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := requireInputs(gp.Name(), gp.inputKeys, record); err != nil {
		return domain.Record{}, err
	}

	result := record
	for i, inputKey := range gp.inputKeys {
		text, err := stringValue(gp.Name(), inputKey, record)
		if err != nil {
			return domain.Record{}, err
		}
		prompt := os.Expand(gp.template, func(string) string { return text })
		result = result.With(gp.outputKeys[i], prompt)
	}
	return result, nil
}

// templatePlaceholders returns the placeholder names referenced by a
// template, in order of appearance.
func templatePlaceholders(template string) []string {
	var names []string
	os.Expand(template, func(name string) string {
		names = append(names, name)
		return ""
	})
	return names
}
