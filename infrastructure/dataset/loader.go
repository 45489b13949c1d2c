package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/rubriq/appraise/internal/domain"
)

var validate = validator.New()

// maxLineBytes bounds a single JSON Lines record.
const maxLineBytes = 1 << 20

// Load reads the dataset described by cfg from its DatasetURI,
// dispatching on the declared MIME type. Source fields are projected
// onto the canonical dataset columns per the config's locations; fields
// with no configured location are not carried into the dataset.
func Load(cfg domain.DataConfig, opts ...Option) (*InMemory, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, domain.NewConfigError("invalid data config: %v", err)
	}
	switch cfg.DatasetMIMEType {
	case domain.MIMETypeJSONLines:
		return FromJSONLines(cfg.DatasetURI, cfg, opts...)
	case domain.MIMETypeJSON:
		return FromJSON(cfg.DatasetURI, cfg, opts...)
	default:
		return nil, domain.NewConfigError("unsupported dataset MIME type %q", cfg.DatasetMIMEType)
	}
}

// FromJSONLines reads a JSON Lines file, one object per line, mapping
// the configured source fields to canonical columns. Blank lines are
// skipped; any configured location absent from a line is an error.
func FromJSONLines(path string, cfg domain.DataConfig, opts ...Option) (*InMemory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, domain.NewConfigError("cannot open dataset %q: %v", cfg.DatasetName, err)
	}
	defer file.Close()

	locations := cfg.ColumnLocations()
	var rows []map[string]any

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal(text, &raw); err != nil {
			return nil, domain.NewConfigError("dataset %q: invalid JSON on line %d: %v", cfg.DatasetName, line, err)
		}
		fields, err := projectColumns(raw, locations)
		if err != nil {
			return nil, domain.NewConfigError("dataset %q: line %d: %v", cfg.DatasetName, line, err)
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dataset %q: %w", cfg.DatasetName, err)
	}

	return FromRecords(rows, opts...), nil
}

// FromJSON reads a file holding one JSON array of objects, mapping the
// configured source fields to canonical columns.
func FromJSON(path string, cfg domain.DataConfig, opts ...Option) (*InMemory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigError("cannot open dataset %q: %v", cfg.DatasetName, err)
	}

	var rawRows []map[string]any
	if err := json.Unmarshal(data, &rawRows); err != nil {
		return nil, domain.NewConfigError("dataset %q: invalid JSON array: %v", cfg.DatasetName, err)
	}

	locations := cfg.ColumnLocations()
	rows := make([]map[string]any, len(rawRows))
	for i, raw := range rawRows {
		fields, err := projectColumns(raw, locations)
		if err != nil {
			return nil, domain.NewConfigError("dataset %q: row %d: %v", cfg.DatasetName, i, err)
		}
		rows[i] = fields
	}

	return FromRecords(rows, opts...), nil
}

// projectColumns maps one source object onto the canonical columns,
// checking canonical order so the first missing location reported is
// deterministic.
func projectColumns(raw map[string]any, locations map[string]string) (map[string]any, error) {
	fields := make(map[string]any, len(locations))
	for _, column := range domain.DatasetColumns {
		location, ok := locations[column]
		if !ok {
			continue
		}
		value, exists := raw[location]
		if !exists {
			return nil, fmt.Errorf("missing configured %s location %q", column, location)
		}
		fields[column] = value
	}
	return fields, nil
}
