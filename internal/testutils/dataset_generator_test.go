package testutils

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/appraise/infrastructure/dataset"
	"github.com/rubriq/appraise/internal/domain"
)

func TestGenerateReviewDataset(t *testing.T) {
	reviews := GenerateReviewDataset(20, 42)
	require.Len(t, reviews, 20)

	for i, review := range reviews {
		assert.NotEmpty(t, review.ReviewText)
		assert.Contains(t, ReviewClasses, review.ClassName)
		if i%2 == 0 {
			assert.Equal(t, "1", review.RecommendedInd)
		} else {
			assert.Equal(t, "0", review.RecommendedInd)
		}
	}

	assert.Equal(t, reviews, GenerateReviewDataset(20, 42))
}

func TestGenerateTriviaDataset(t *testing.T) {
	rows := GenerateTriviaDataset(40, 42)
	require.Len(t, rows, 40)
	for _, row := range rows {
		assert.NotEmpty(t, row.Question)
		assert.NotEmpty(t, row.Answer)
	}

	// Longer than the fact table, so rows repeat with the same pairing.
	assert.Equal(t, rows[0], rows[15])
	assert.Equal(t, rows, GenerateTriviaDataset(40, 42))
}

func TestSaveJSONLines_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets", "reviews.jsonl")
	reviews := GenerateReviewDataset(6, 7)
	require.NoError(t, SaveJSONLines(path, reviews))

	ds, err := dataset.Load(domain.DataConfig{
		DatasetName:          "reviews",
		DatasetURI:           path,
		DatasetMIMEType:      domain.MIMETypeJSONLines,
		ModelInputLocation:   "review_text",
		TargetOutputLocation: "recommended_ind",
		CategoryLocation:     "class_name",
	})
	require.NoError(t, err)

	assert.Equal(t, 6, ds.Len())
	for _, column := range []string{domain.ColumnModelInput, domain.ColumnTargetOutput, domain.ColumnCategory} {
		assert.True(t, slices.Contains(ds.Columns(), column), "missing column %s", column)
	}
}
