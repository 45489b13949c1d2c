package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// saveBatchLines is how many serialized rows are buffered before each
// file write. Purely an I/O batching knob with no semantic effect.
const saveBatchLines = 1024

// SaveDataset persists a dataset's rows as JSON Lines at path, with one
// EvalOutputRecord per row carrying the recognized dataset columns and
// the named score columns. Whatever extension the caller supplied is
// normalized to ".jsonl". The dataset is materialized first so the
// saved row order is the engine's fixed order.
func SaveDataset(ctx context.Context, ds ports.Dataset, scoreNames []string, path string) error {
	path = strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl"

	materialized, err := ds.Materialize(ctx)
	if err != nil {
		return fmt.Errorf("materializing dataset: %w", err)
	}
	rows, err := materialized.Rows(ctx)
	if err != nil {
		return fmt.Errorf("reading dataset rows: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	file, err := os.Create(path) // #nosec G304 -- path is caller-controlled output
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer file.Close()

	batch := make([][]byte, 0, saveBatchLines)
	for _, row := range rows {
		record, err := domain.RecordFromRow(row, scoreNames)
		if err != nil {
			return err
		}
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling output record: %w", err)
		}
		batch = append(batch, line)
		if len(batch) == saveBatchLines {
			if err := writeLines(file, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := writeLines(file, batch); err != nil {
		return err
	}
	return file.Close()
}

// writeLines writes a batch of serialized rows joined by newlines,
// with a trailing newline.
func writeLines(file *os.File, batch [][]byte) error {
	if len(batch) == 0 {
		return nil
	}
	joined := append(bytes.Join(batch, []byte("\n")), '\n')
	if _, err := file.Write(joined); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	return nil
}

// GenerateOutputDatasetPath composes the canonical per-dataset results
// path under parentDir.
func GenerateOutputDatasetPath(parentDir, evalName, datasetName string) string {
	return filepath.Join(parentDir, evalName+"_"+datasetName+".jsonl")
}
