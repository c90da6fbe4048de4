package eval

import (
	"context"
	"math/rand/v2"

	"qbank/internal/domain"
	"qbank/internal/port"
)

// ExampleK is the number of results shown per qualitative example.
const ExampleK = 3

// Example is one corpus question searched for with its own cleaned text.
type Example struct {
	Query            string       `json:"query"`
	OriginalQuestion string       `json:"original_question"`
	OriginalAnswer   *string      `json:"original_answer"`
	Results          []ExampleHit `json:"results"`
}

// ExampleHit is a trimmed-down search result.
type ExampleHit struct {
	Rank            int     `json:"rank"`
	Question        string  `json:"question"`
	Answer          *string `json:"answer"`
	AnswerText      *string `json:"answer_text"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Examples samples n records (all of them when n exceeds the corpus) and
// searches for each.
func Examples(ctx context.Context, searcher port.Searcher, records []domain.QuestionRecord, n int, seed int64) ([]Example, error) {
	n = min(n, len(records))
	if n <= 0 {
		return nil, nil
	}
	k := min(ExampleK, len(records))

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	picks := rng.Perm(len(records))[:n]

	examples := make([]Example, 0, n)
	for _, pos := range picks {
		rec := records[pos]
		results, err := searcher.Search(ctx, rec.QuestionCleaned, k)
		if err != nil {
			return nil, err
		}

		ex := Example{
			Query:            rec.QuestionCleaned,
			OriginalQuestion: rec.Question,
			OriginalAnswer:   rec.AnswerRaw,
			Results:          make([]ExampleHit, len(results)),
		}
		for i, r := range results {
			ex.Results[i] = ExampleHit{
				Rank:            r.Rank,
				Question:        r.Question,
				Answer:          r.Answer,
				AnswerText:      r.AnswerText,
				SimilarityScore: r.SimilarityScore,
			}
		}
		examples = append(examples, ex)
	}
	return examples, nil
}
