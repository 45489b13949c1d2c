package domain

import (
	"math"
	"sort"
)

// scoreRelTolerance is the relative tolerance used when comparing score
// values. Scores travel through JSON serialization and parallel mean
// computations, so equality must be approximate rather than bitwise.
const scoreRelTolerance = 1e-9

// floatEquals reports whether two floats are equal within a relative
// tolerance, mirroring the usual isclose semantics.
func floatEquals(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= scoreRelTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// EvalScore is a single named metric value produced by an evaluation.
type EvalScore struct {
	// Name identifies the metric, e.g. "word_error_rate".
	Name string `json:"name"`

	// Value is the computed metric value.
	Value float64 `json:"value"`
}

// Equal reports whether two scores share a name and a value equal
// within floating-point tolerance.
func (s EvalScore) Equal(other EvalScore) bool {
	return s.Name == other.Name && floatEquals(s.Value, other.Value)
}

// CategoryScore groups the metric values computed for one category of
// dataset rows.
type CategoryScore struct {
	// Name is the category value the scores belong to.
	Name string `json:"name"`

	// Scores holds one EvalScore per metric, in dataset score order.
	Scores []EvalScore `json:"scores"`
}

// Equal reports whether two CategoryScores describe the same category
// with the same multiset of scores. Score order does not matter, but
// multiplicity does: an extra duplicate score breaks equality.
func (c CategoryScore) Equal(other CategoryScore) bool {
	return c.Name == other.Name && scoresEqualUnordered(c.Scores, other.Scores)
}

// scoresEqualUnordered compares two score slices as multisets using
// tolerant score equality.
func scoresEqualUnordered(a, b []EvalScore) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, sa := range a {
		found := false
		for i, sb := range b {
			if !used[i] && sa.Equal(sb) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EvalOutput is the full result of evaluating one dataset: either the
// aggregated scores (with optional per-category breakdowns) or an error
// message describing why the evaluation failed, never both.
type EvalOutput struct {
	// EvalName identifies the evaluation algorithm that produced this output.
	EvalName string `json:"eval_name"`

	// DatasetName identifies the evaluated dataset.
	DatasetName string `json:"dataset_name"`

	// PromptTemplate is the template used to compose prompts, if any.
	PromptTemplate string `json:"prompt_template,omitempty"`

	// DatasetScores holds the dataset-level aggregate per metric, in the
	// order the algorithm computes its metrics. Nil when Error is set.
	DatasetScores []EvalScore `json:"dataset_scores,omitempty"`

	// CategoryScores holds per-category aggregates when the dataset has
	// a category column. Every category reports exactly the same set of
	// score names as DatasetScores.
	CategoryScores []CategoryScore `json:"category_scores,omitempty"`

	// OutputPath is where the per-row results were persisted, if saving
	// was requested.
	OutputPath string `json:"output_path,omitempty"`

	// Error describes why the evaluation failed. Empty on success.
	Error string `json:"error,omitempty"`
}

// NewEvalOutput validates and returns the given EvalOutput.
//
// Exactly one of DatasetScores and Error must be populated, and every
// CategoryScore must carry the same score names, with the same
// cardinality, as DatasetScores. Violations return an InternalError:
// these invariants are enforced by the framework's own aggregation
// code, so a mismatch indicates a bug rather than bad user input.
func NewEvalOutput(out EvalOutput) (*EvalOutput, error) {
	scoresPresent := out.DatasetScores != nil
	errorPresent := out.Error != ""
	if scoresPresent == errorPresent {
		return nil, NewInternalError(
			"EvalOutput for eval %q on dataset %q requires exactly one of dataset scores or error",
			out.EvalName, out.DatasetName,
		)
	}
	if len(out.CategoryScores) > 0 {
		want := scoreNames(out.DatasetScores)
		for _, category := range out.CategoryScores {
			got := scoreNames(category.Scores)
			if !namesEqual(want, got) {
				return nil, NewInternalError(
					"category %q reports scores %v, which do not match dataset scores %v",
					category.Name, got, want,
				)
			}
		}
	}
	return &out, nil
}

// scoreNames returns the sorted score names of the given scores,
// preserving multiplicity.
func scoreNames(scores []EvalScore) []string {
	names := make([]string, len(scores))
	for i, s := range scores {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}

func namesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two EvalOutputs are equivalent. Dataset scores
// are compared in order with floating-point tolerance; category scores
// are compared as an unordered set.
func (o EvalOutput) Equal(other EvalOutput) bool {
	if o.EvalName != other.EvalName ||
		o.DatasetName != other.DatasetName ||
		o.PromptTemplate != other.PromptTemplate ||
		o.OutputPath != other.OutputPath ||
		o.Error != other.Error {
		return false
	}
	if len(o.DatasetScores) != len(other.DatasetScores) {
		return false
	}
	for i := range o.DatasetScores {
		if !o.DatasetScores[i].Equal(other.DatasetScores[i]) {
			return false
		}
	}
	return categoryScoresEqualUnordered(o.CategoryScores, other.CategoryScores)
}

// categoryScoresEqualUnordered compares category score slices as
// multisets keyed by tolerant CategoryScore equality.
func categoryScoresEqualUnordered(a, b []CategoryScore) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ca := range a {
		found := false
		for i, cb := range b {
			if !used[i] && ca.Equal(cb) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
