package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// GeneratedReview is one synthetic labeled clothing review. Field
// names match the source-field locations the built-in review dataset
// config expects.
type GeneratedReview struct {
	ReviewText     string `json:"review_text"`
	RecommendedInd string `json:"recommended_ind"`
	ClassName      string `json:"class_name"`
}

// GeneratedTrivia is one synthetic open-ended question/answer pair.
// Field names match the source-field locations the built-in trivia
// dataset config expects.
type GeneratedTrivia struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ReviewClasses are the product categories synthetic reviews are
// labeled with.
var ReviewClasses = []string{"Dresses", "Knits", "Pants", "Blouses", "Jackets"}

var positiveReviewTemplates = []string{
	"Absolutely love this %s, the fit is perfect and the fabric feels great",
	"This %s exceeded my expectations, true to size and very comfortable",
	"Bought this %s for a trip and got compliments all week",
	"The %s washes well and keeps its shape, would buy again",
	"Gorgeous %s, flattering cut and lovely color in person",
}

var negativeReviewTemplates = []string{
	"Disappointed with this %s, it runs small and the seams are already loose",
	"The %s looked nothing like the photos and the fabric is scratchy",
	"Returned this %s, the color faded after a single wash",
	"This %s fits awkwardly in the shoulders and the material feels cheap",
	"Not worth the price, the %s arrived with a broken zipper",
}

var reviewSubjects = []string{"dress", "sweater", "pair of pants", "blouse", "jacket", "top", "skirt"}

// triviaFacts holds the question/answer pairs synthetic trivia rows
// are drawn from.
var triviaFacts = []GeneratedTrivia{
	{Question: "What is the capital of France?", Answer: "Paris"},
	{Question: "What is the capital of Japan?", Answer: "Tokyo"},
	{Question: "What is the capital of Canada?", Answer: "Ottawa"},
	{Question: "What is the capital of Australia?", Answer: "Canberra"},
	{Question: "What is the largest planet in the solar system?", Answer: "Jupiter"},
	{Question: "What is the smallest prime number?", Answer: "2"},
	{Question: "How many continents are there?", Answer: "7"},
	{Question: "What is the chemical symbol for gold?", Answer: "Au"},
	{Question: "What is the chemical symbol for oxygen?", Answer: "O"},
	{Question: "In what year did the first moon landing happen?", Answer: "1969"},
	{Question: "What is the longest river in the world?", Answer: "Nile"},
	{Question: "How many sides does a hexagon have?", Answer: "6"},
	{Question: "What is the freezing point of water in Celsius?", Answer: "0"},
	{Question: "What is the square root of 81?", Answer: "9"},
	{Question: "Which ocean is the largest?", Answer: "Pacific"},
}

// GenerateReviewDataset creates size synthetic labeled reviews. The
// seed controls randomization; use a fixed value for reproducible
// datasets or time.Now().UnixNano() for fresh ones. Roughly half the
// reviews are positive (recommended_ind 1).
func GenerateReviewDataset(size int, seed int64) []GeneratedReview {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- synthetic test data

	reviews := make([]GeneratedReview, 0, size)
	for i := range size {
		subject := reviewSubjects[rng.Intn(len(reviewSubjects))]
		class := ReviewClasses[rng.Intn(len(ReviewClasses))]

		review := GeneratedReview{ClassName: class}
		if i%2 == 0 {
			template := positiveReviewTemplates[rng.Intn(len(positiveReviewTemplates))]
			review.ReviewText = fmt.Sprintf(template, subject)
			review.RecommendedInd = "1"
		} else {
			template := negativeReviewTemplates[rng.Intn(len(negativeReviewTemplates))]
			review.ReviewText = fmt.Sprintf(template, subject)
			review.RecommendedInd = "0"
		}
		reviews = append(reviews, review)
	}
	return reviews
}

// GenerateTriviaDataset creates size synthetic question/answer rows,
// cycling through the fact table in a seed-shuffled order.
func GenerateTriviaDataset(size int, seed int64) []GeneratedTrivia {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- synthetic test data

	shuffled := make([]GeneratedTrivia, len(triviaFacts))
	copy(shuffled, triviaFacts)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	rows := make([]GeneratedTrivia, 0, size)
	for i := range size {
		rows = append(rows, shuffled[i%len(shuffled)])
	}
	return rows
}

// GenerateReviewDatasetDefault creates a review dataset with a
// time-based seed.
func GenerateReviewDatasetDefault(size int) []GeneratedReview {
	return GenerateReviewDataset(size, time.Now().UnixNano())
}

// SaveJSONLines writes rows to path as JSON Lines, creating parent
// directories as needed.
func SaveJSONLines[T any](path string, rows []T) error {
	var buf bytes.Buffer
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshaling dataset row: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing dataset file: %w", err)
	}
	return nil
}
