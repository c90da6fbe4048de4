package port

import (
	"context"

	"qbank/internal/domain"
)

// CorpusSource produces the ordered question records of a corpus.
type CorpusSource interface {
	Load(ctx context.Context) ([]domain.QuestionRecord, error)
}
