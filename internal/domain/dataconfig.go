package domain

// MIME types accepted for dataset sources.
const (
	// MIMETypeJSONLines identifies a JSON Lines dataset file.
	MIMETypeJSONLines = "application/jsonlines"

	// MIMETypeJSON identifies a JSON array dataset file.
	MIMETypeJSON = "application/json"
)

// DataConfig describes how to load one named dataset: where it lives,
// how it is encoded, and which source fields map to the canonical
// dataset columns. It is owned by the orchestration layer and never
// mutated by the pipeline.
type DataConfig struct {
	// DatasetName names the dataset; it becomes part of output paths.
	DatasetName string `json:"dataset_name" yaml:"dataset_name" validate:"required"`

	// DatasetURI locates the dataset source (a local file path).
	DatasetURI string `json:"dataset_uri" yaml:"dataset_uri" validate:"required"`

	// DatasetMIMEType declares the source encoding.
	DatasetMIMEType string `json:"dataset_mime_type" yaml:"dataset_mime_type" validate:"required,oneof=application/jsonlines application/json"`

	// ModelInputLocation names the source field holding model input text.
	ModelInputLocation string `json:"model_input_location,omitempty" yaml:"model_input_location,omitempty"`

	// TargetOutputLocation names the source field holding the reference
	// answer.
	TargetOutputLocation string `json:"target_output_location,omitempty" yaml:"target_output_location,omitempty"`

	// ModelOutputLocation names the source field holding a precomputed
	// model response, when the dataset already carries one.
	ModelOutputLocation string `json:"model_output_location,omitempty" yaml:"model_output_location,omitempty"`

	// ModelLogProbabilityLocation names the source field holding a
	// precomputed log probability.
	ModelLogProbabilityLocation string `json:"model_log_probability_location,omitempty" yaml:"model_log_probability_location,omitempty"`

	// CategoryLocation names the source field holding the row category.
	CategoryLocation string `json:"category_location,omitempty" yaml:"category_location,omitempty"`
}

// ColumnLocations maps each canonical dataset column to its configured
// source field, skipping columns with no configured location.
func (c DataConfig) ColumnLocations() map[string]string {
	locations := make(map[string]string, 5)
	if c.ModelInputLocation != "" {
		locations[ColumnModelInput] = c.ModelInputLocation
	}
	if c.TargetOutputLocation != "" {
		locations[ColumnTargetOutput] = c.TargetOutputLocation
	}
	if c.ModelOutputLocation != "" {
		locations[ColumnModelOutput] = c.ModelOutputLocation
	}
	if c.ModelLogProbabilityLocation != "" {
		locations[ColumnModelLogProbability] = c.ModelLogProbabilityLocation
	}
	if c.CategoryLocation != "" {
		locations[ColumnCategory] = c.CategoryLocation
	}
	return locations
}
