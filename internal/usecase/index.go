package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"qbank/internal/adapter/corpus"
	"qbank/internal/adapter/embedding"
	"qbank/internal/adapter/index"
	"qbank/internal/adapter/store"
	"qbank/internal/domain"
	"qbank/internal/port"
)

// IndexUseCase embeds a corpus and builds the nearest-neighbor index over it.
type IndexUseCase struct {
	embedder     port.Embedder
	batchSize    int
	workers      int
	maxNeighbors int
	configHash   string
	logger       *zap.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	embedder port.Embedder,
	batchSize, workers, maxNeighbors int,
	configHash string,
	logger *zap.Logger,
) *IndexUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexUseCase{
		embedder:     embedder,
		batchSize:    batchSize,
		workers:      workers,
		maxNeighbors: maxNeighbors,
		configHash:   configHash,
		logger:       logger,
	}
}

// IndexResult summarizes a build.
type IndexResult struct {
	Questions int
	Dimension int
	Elapsed   time.Duration
}

// Build embeds every record's search text and indexes the resulting matrix.
// The returned bundle has not been saved; its Meta lacks a bundle ID.
func (u *IndexUseCase) Build(ctx context.Context, records []domain.QuestionRecord, progress embedding.ProgressFunc) (store.Bundle, *IndexResult, error) {
	if len(records) == 0 {
		return store.Bundle{}, nil, fmt.Errorf("%w: corpus has no usable questions", domain.ErrInvalidArgument)
	}
	start := time.Now()

	texts := corpus.EmbeddingTexts(records)
	u.logger.Info("embedding corpus",
		zap.Int("questions", len(texts)),
		zap.String("model", u.embedder.ModelName()),
		zap.Int("batch_size", u.batchSize),
		zap.Int("workers", u.workers),
	)

	matrix, err := embedding.BatchEmbed(ctx, u.embedder, texts, u.batchSize, u.workers, progress)
	if err != nil {
		return store.Bundle{}, nil, err
	}

	idx, err := index.Build(matrix, u.maxNeighbors)
	if err != nil {
		return store.Bundle{}, nil, err
	}

	result := &IndexResult{
		Questions: len(records),
		Dimension: idx.Dim(),
		Elapsed:   time.Since(start),
	}
	u.logger.Info("index built",
		zap.Int("rows", idx.Rows()),
		zap.Int("dimension", idx.Dim()),
		zap.Int("max_neighbors", idx.MaxNeighbors()),
		zap.Duration("elapsed", result.Elapsed),
	)

	return store.Bundle{
		Meta: store.Meta{
			ModelName:         u.embedder.ModelName(),
			CorpusFingerprint: corpus.Fingerprint(records),
			ConfigHash:        u.configHash,
		},
		Records: records,
		Matrix:  matrix,
		Index:   idx,
	}, result, nil
}
