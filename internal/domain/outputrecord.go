package domain

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Canonical dataset column names recognized in persisted output.
const (
	// ColumnModelInput holds the raw input text for a row.
	ColumnModelInput = "model_input"

	// ColumnPrompt holds the composed prompt sent to the model.
	ColumnPrompt = "prompt"

	// ColumnTargetOutput holds the reference answer for a row.
	ColumnTargetOutput = "target_output"

	// ColumnModelOutput holds the model's response for a row.
	ColumnModelOutput = "model_output"

	// ColumnModelLogProbability holds the model's log probability for a row.
	ColumnModelLogProbability = "model_log_probability"

	// ColumnCategory holds the row's category value used for per-category
	// aggregation.
	ColumnCategory = "category"
)

// DatasetColumns is the fixed allow-list of non-score columns permitted
// in saved output, in the canonical serialization order. Columns outside
// this list are treated as intermediate computation state and never
// appear in persisted records.
var DatasetColumns = []string{
	ColumnModelInput,
	ColumnPrompt,
	ColumnTargetOutput,
	ColumnModelOutput,
	ColumnModelLogProbability,
	ColumnCategory,
}

// EvalOutputRecord is the canonical serializable form of one evaluated
// dataset row: the recognized dataset columns plus the row's scores.
// Instances are created transiently per row while saving a dataset,
// flattened to a JSON object, and discarded.
type EvalOutputRecord struct {
	// Scores holds the row's metric values in discovery order.
	Scores []EvalScore

	// Columns maps recognized column names to the row's values.
	// Keys are restricted to DatasetColumns.
	Columns map[string]any
}

// NewEvalOutputRecord validates that every column belongs to the
// recognized allow-list and returns the record. A column outside
// DatasetColumns indicates a filtering bug upstream.
func NewEvalOutputRecord(scores []EvalScore, columns map[string]any) (EvalOutputRecord, error) {
	for col := range columns {
		if !slices.Contains(DatasetColumns, col) {
			return EvalOutputRecord{}, NewInternalError(
				"attempting to initialize an EvalOutputRecord with invalid non-score column %q", col,
			)
		}
	}
	return EvalOutputRecord{Scores: scores, Columns: columns}, nil
}

// RecordFromRow builds an EvalOutputRecord from a raw dataset row.
//
// Names listed in scoreNames become EvalScore entries in scoreNames
// order (a non-numeric score value is an InternalError, since score
// columns are produced by the framework's own metric transforms).
// Every other field is kept only when it belongs to the recognized
// column allow-list; unrecognized fields hold intermediate computation
// state and are dropped silently.
func RecordFromRow(row Record, scoreNames []string) (EvalOutputRecord, error) {
	scores := make([]EvalScore, 0, len(scoreNames))
	for _, name := range scoreNames {
		value, ok := row.Value(name)
		if !ok {
			continue
		}
		number, ok := Number(row, name)
		if !ok {
			return EvalOutputRecord{}, NewInternalError(
				"score column %q holds non-numeric value %v", name, value,
			)
		}
		scores = append(scores, EvalScore{Name: name, Value: number})
	}

	columns := make(map[string]any)
	for _, col := range DatasetColumns {
		if slices.Contains(scoreNames, col) {
			continue
		}
		if value, ok := row.Value(col); ok {
			columns[col] = value
		}
	}
	return EvalOutputRecord{Scores: scores, Columns: columns}, nil
}

// MarshalJSON renders the record with a stable field order: recognized
// columns first, in DatasetColumns order, followed by a "scores" array.
// The scores key is always present and always last.
func (r EvalOutputRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, col := range DatasetColumns {
		value, ok := r.Columns[col]
		if !ok {
			continue
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	if buf.Len() > 1 {
		buf.WriteByte(',')
	}
	buf.WriteString(`"scores":`)
	scores := r.Scores
	if scores == nil {
		scores = []EvalScore{}
	}
	encoded, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}
	buf.Write(encoded)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
