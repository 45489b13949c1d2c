// Command gendataset generates the synthetic datasets the built-in
// evaluations expect: a labeled clothing review dataset for the
// classification algorithms and an open-ended trivia dataset for the
// robustness algorithms. Both are written as JSON Lines under the
// output directory.
//
// The generated data is synthetic and intended for trying out the
// framework; real evaluations should point their dataset configs at
// properly sourced data.
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/rubriq/appraise/internal/evals"
	"github.com/rubriq/appraise/internal/testutils"
)

func main() {
	var (
		size      = flag.Int("size", 200, "Number of rows to generate per dataset")
		outputDir = flag.String("output", "datasets", "Directory to write the dataset files into")
		seed      = flag.Int64("seed", 0, "Random seed; 0 uses the current time")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	reviewsPath := filepath.Join(*outputDir, evals.DatasetWomensClothingReviews+".jsonl")
	reviews := testutils.GenerateReviewDataset(*size, *seed)
	if err := testutils.SaveJSONLines(reviewsPath, reviews); err != nil {
		log.Fatalf("Failed to save review dataset: %v", err)
	}

	triviaPath := filepath.Join(*outputDir, evals.DatasetTriviaQA+".jsonl")
	trivia := testutils.GenerateTriviaDataset(*size, *seed)
	if err := testutils.SaveJSONLines(triviaPath, trivia); err != nil {
		log.Fatalf("Failed to save trivia dataset: %v", err)
	}

	recommended := 0
	for _, review := range reviews {
		if review.RecommendedInd == "1" {
			recommended++
		}
	}

	fmt.Printf("Generated datasets:\n")
	fmt.Printf("- %s: %d reviews (%d recommended, %d not)\n", reviewsPath, len(reviews), recommended, len(reviews)-recommended)
	fmt.Printf("- %s: %d question/answer pairs\n", triviaPath, len(trivia))
	fmt.Printf("\nSeed: %d\n", *seed)
}
