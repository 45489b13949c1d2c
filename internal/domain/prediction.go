package domain

// Prediction is the result of one model invocation. Either field may be
// absent: text-only models never report log probabilities, and some
// runners are configured to extract only one of the two.
type Prediction struct {
	// Output is the model's text response, if any.
	Output *string `json:"output,omitempty"`

	// LogProbability is the log probability the model assigned to its
	// response, if the runner extracts one.
	LogProbability *float64 `json:"log_probability,omitempty"`
}
