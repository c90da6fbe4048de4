package port

import (
	"context"

	"qbank/internal/domain"
)

// Searcher answers ranked nearest-question queries.
type Searcher interface {
	// Search returns the k closest questions to query, nearest first.
	Search(ctx context.Context, query string, k int) ([]domain.ResultRecord, error)
}

// StatsProvider reports engine state.
type StatsProvider interface {
	Stats() (domain.Stats, error)
}
