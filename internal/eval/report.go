package eval

import (
	"fmt"
	"io"
	"strings"

	"qbank/internal/domain"
)

// Report is the full output of an evaluation run.
type Report struct {
	Result   *Result   `json:"metrics"`
	Examples []Example `json:"examples,omitempty"`
}

// Write prints the report as text.
func (r *Report) Write(w io.Writer, stats domain.Stats) error {
	p := &printer{w: w}
	rule := strings.Repeat("=", 60)

	if r.Result == nil {
		p.printf("No evaluation results available.\n")
		return p.err
	}
	res := r.Result

	p.printf("\n%s\n", rule)
	p.printf("QUESTION BANK RETRIEVAL EVALUATION REPORT\n")
	p.printf("%s\n", rule)

	p.printf("\nDataset Information:\n")
	p.printf("- Total questions in dataset: %d\n", stats.TotalQuestions)
	p.printf("- Questions evaluated: %d\n", res.Questions)
	p.printf("- Model used: %s\n", stats.ModelName)
	if stats.EmbeddingDimension != nil {
		p.printf("- Embedding dimension: %d\n", *stats.EmbeddingDimension)
	}

	p.printf("\nRetrieval Metrics:\n")
	p.printf("- Hit@1: %.3f (%d/%d)\n", res.HitAt1, res.HitAt1Count, res.Questions)
	p.printf("- Hit@3: %.3f (%d/%d)\n", res.HitAt3, res.HitAt3Count, res.Questions)
	p.printf("- Hit@5: %.3f (%d/%d)\n", res.HitAt5, res.HitAt5Count, res.Questions)
	p.printf("- Mean Reciprocal Rank (MRR): %.3f\n", res.MRR)

	if mean, ok := res.MeanRank(); ok {
		median, _ := res.MedianRank()
		p.printf("\nRank Distribution:\n")
		p.printf("- Average rank when found: %.2f\n", mean)
		p.printf("- Median rank when found: %.2f\n", median)
		p.printf("- Questions not found in top %d: %d\n", res.K, res.NotFound)
	}

	if len(r.Examples) > 0 {
		p.printf("\nQualitative Examples:\n")
		for i, ex := range r.Examples {
			p.printf("\n%d. Query: %s\n", i+1, ex.Query)
			if ex.OriginalAnswer != nil {
				p.printf("   Answer: %s\n", *ex.OriginalAnswer)
			}
			for _, hit := range ex.Results {
				answer := "-"
				if hit.AnswerText != nil {
					answer = *hit.AnswerText
				}
				p.printf("   [%d] %.3f  %s  (%s)\n", hit.Rank, hit.SimilarityScore, hit.Question, answer)
			}
		}
	}

	p.printf("\n%s\n", rule)
	return p.err
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
