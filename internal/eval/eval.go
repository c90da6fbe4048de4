// Package eval measures retrieval quality by searching for held-out corpus
// questions and checking where the question itself ranks.
package eval

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"qbank/internal/domain"
	"qbank/internal/port"
)

// Options controls Evaluate.
type Options struct {
	Fraction float64 // share of questions held out, in (0, 1]
	Seed     int64
	K        int // results requested per query
	Workers  int
	Progress func(done, total int)
}

// Result holds retrieval metrics. Ranks and ReciprocalRanks are in held-out
// order; a rank of 0 means the question was not among the K results.
type Result struct {
	Questions       int       `json:"total_questions_evaluated"`
	K               int       `json:"search_k"`
	HitAt1          float64   `json:"hit_at_1"`
	HitAt3          float64   `json:"hit_at_3"`
	HitAt5          float64   `json:"hit_at_5"`
	HitAt1Count     int       `json:"hit_at_1_count"`
	HitAt3Count     int       `json:"hit_at_3_count"`
	HitAt5Count     int       `json:"hit_at_5_count"`
	MRR             float64   `json:"mrr"`
	NotFound        int       `json:"not_found"`
	ReciprocalRanks []float64 `json:"reciprocal_ranks"`
	Ranks           []int     `json:"-"`
}

// Split returns ceil(n*fraction) distinct positions in [0, n), chosen by a
// shuffle seeded with seed. At least one position is returned when n > 0.
func Split(n int, fraction float64, seed int64) ([]int, error) {
	if fraction <= 0 || fraction > 1 || math.IsNaN(fraction) {
		return nil, fmt.Errorf("%w: test fraction %v outside (0, 1]", domain.ErrInvalidArgument, fraction)
	}
	if n <= 0 {
		return nil, nil
	}
	size := int(math.Ceil(float64(n) * fraction))
	size = max(1, min(size, n))

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	return rng.Perm(n)[:size], nil
}

// Evaluate searches for the cleaned text of every held-out question and
// records the rank at which the question's own ID comes back. Questions
// without an ID cannot be identified in results and are not held out.
func Evaluate(ctx context.Context, searcher port.Searcher, records []domain.QuestionRecord, opts Options) (*Result, error) {
	if opts.K < 1 {
		return nil, fmt.Errorf("%w: k=%d", domain.ErrInvalidArgument, opts.K)
	}

	identified := make([]int, 0, len(records))
	for i, rec := range records {
		if rec.ID != nil {
			identified = append(identified, i)
		}
	}
	picks, err := Split(len(identified), opts.Fraction, opts.Seed)
	if err != nil {
		return nil, err
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: no questions with an ID to evaluate", domain.ErrInvalidArgument)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	ranks := make([]int, len(picks))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pick := range picks {
		rec := records[identified[pick]]
		g.Go(func() error {
			results, err := searcher.Search(gctx, rec.QuestionCleaned, opts.K)
			if err != nil {
				return fmt.Errorf("question %d: %w", *rec.ID, err)
			}
			ranks[i] = rankOf(results, *rec.ID)
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(picks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return score(ranks, opts.K), nil
}

// rankOf returns the rank of the first result with the given ID, or 0.
func rankOf(results []domain.ResultRecord, id int64) int {
	for _, r := range results {
		if r.ID != nil && *r.ID == id {
			return r.Rank
		}
	}
	return 0
}

func score(ranks []int, k int) *Result {
	res := &Result{
		Questions:       len(ranks),
		K:               k,
		Ranks:           ranks,
		ReciprocalRanks: make([]float64, len(ranks)),
	}

	var rrSum float64
	for i, rank := range ranks {
		if rank == 0 {
			res.NotFound++
			continue
		}
		if rank <= 1 {
			res.HitAt1Count++
		}
		if rank <= 3 {
			res.HitAt3Count++
		}
		if rank <= 5 {
			res.HitAt5Count++
		}
		res.ReciprocalRanks[i] = 1 / float64(rank)
		rrSum += res.ReciprocalRanks[i]
	}

	if n := float64(len(ranks)); n > 0 {
		res.HitAt1 = float64(res.HitAt1Count) / n
		res.HitAt3 = float64(res.HitAt3Count) / n
		res.HitAt5 = float64(res.HitAt5Count) / n
		res.MRR = rrSum / n
	}
	return res
}

// FoundRanks returns the ranks of questions that were found, ascending.
func (r *Result) FoundRanks() []int {
	found := make([]int, 0, len(r.Ranks))
	for _, rank := range r.Ranks {
		if rank > 0 {
			found = append(found, rank)
		}
	}
	sort.Ints(found)
	return found
}

// MeanRank is the average rank over found questions.
func (r *Result) MeanRank() (float64, bool) {
	found := r.FoundRanks()
	if len(found) == 0 {
		return 0, false
	}
	var sum int
	for _, rank := range found {
		sum += rank
	}
	return float64(sum) / float64(len(found)), true
}

// MedianRank is the median rank over found questions.
func (r *Result) MedianRank() (float64, bool) {
	found := r.FoundRanks()
	n := len(found)
	if n == 0 {
		return 0, false
	}
	if n%2 == 1 {
		return float64(found[n/2]), true
	}
	return float64(found[n/2-1]+found[n/2]) / 2, true
}
