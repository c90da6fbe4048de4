package usecase

import (
	"context"
	"errors"
	"fmt"

	"qbank/internal/adapter/analyzer"
	"qbank/internal/adapter/index"
	"qbank/internal/domain"
)

// Search returns the k corpus questions nearest to query, best first.
// k must be in [1, M] where M is the build-time neighbor cap.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]domain.ResultRecord, error) {
	st := e.state.Load()
	if st.phase != phaseReady {
		return nil, domain.ErrNotReady
	}
	snap := st.snap
	if m := snap.index.MaxNeighbors(); k < 1 || k > m {
		return nil, fmt.Errorf("%w: k=%d outside [1, %d]", domain.ErrInvalidArgument, k, m)
	}

	cleaned := analyzer.Normalize(query)
	if e.cache != nil {
		if cached, ok := e.cache.Get(cleaned, k); ok {
			return cached, nil
		}
	}

	vecs, err := snap.embedder.Embed(ctx, []string{cleaned})
	if err != nil {
		if errors.Is(err, domain.ErrProvider) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", domain.ErrProvider, len(vecs))
	}

	hits, err := snap.index.Query(vecs[0], k)
	if err != nil {
		return nil, err
	}
	results := snap.assemble(hits)

	// Skip caching if the snapshot was swapped while this query ran.
	if e.cache != nil && e.state.Load() == st {
		e.cache.Put(cleaned, k, results)
	}
	return results, nil
}

func (s *snapshot) assemble(hits []index.Neighbor) []domain.ResultRecord {
	results := make([]domain.ResultRecord, len(hits))
	for i, h := range hits {
		rec := s.records[h.Position]
		results[i] = domain.ResultRecord{
			Rank:            i + 1,
			ID:              rec.ID,
			QuestionID:      rec.QuestionID,
			Question:        rec.Question,
			QuestionCleaned: rec.QuestionCleaned,
			Option1:         rec.Options[0],
			Option2:         rec.Options[1],
			Option3:         rec.Options[2],
			Option4:         rec.Options[3],
			Option5:         rec.Options[4],
			Answer:          rec.AnswerRaw,
			AnswerText:      ResolveAnswer(rec.AnswerRaw, rec),
			Explanation:     rec.Explanation,
			Difficulty:      rec.Difficulty,
			SimilarityScore: 1 - h.Distance,
			Distance:        h.Distance,
		}
	}
	return results
}

// Ask searches for query and presents the best match as the answer, with
// the remaining results as alternatives.
func (e *Engine) Ask(ctx context.Context, query string, k int) (*domain.Answer, error) {
	results, err := e.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	ans := &domain.Answer{Query: query, Alternatives: []domain.ResultRecord{}}
	if len(results) == 0 {
		return ans, nil
	}
	top := results[0]
	ans.Answer = top.AnswerText
	ans.Match = &top
	ans.Alternatives = results[1:]
	return ans, nil
}
