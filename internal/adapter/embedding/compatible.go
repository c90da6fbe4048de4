package embedding

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const defaultOllamaURL = "http://localhost:11434/v1"

// CompatibleEmbedder talks to any server exposing an OpenAI-compatible
// /embeddings route (Ollama, text-embeddings-inference, LocalAI).
type CompatibleEmbedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension atomic.Int64
	logger    *zap.Logger
}

// NewCompatibleEmbedder creates an embedder for baseURL. The token is read
// from apiKeyEnv when set; local servers accept any token.
func NewCompatibleEmbedder(model, baseURL, apiKeyEnv string, dimension, batchSize int, logger *zap.Logger) (*CompatibleEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base_url is required for OpenAI-compatible embeddings")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	token := "none"
	if apiKeyEnv != "" {
		if v := os.Getenv(apiKeyEnv); v != "" {
			token = v
		}
	}

	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(token),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	e := &CompatibleEmbedder{
		embedder: embedder,
		model:    model,
		logger:   logger.With(zap.String("component", "compatible-embedder"), zap.String("base_url", baseURL)),
	}
	if dimension <= 0 {
		dimension = knownDimension(model)
	}
	e.dimension.Store(int64(dimension))
	return e, nil
}

// NewOllamaEmbedder creates a CompatibleEmbedder for a local Ollama server.
func NewOllamaEmbedder(model, baseURL string, dimension, batchSize int, logger *zap.Logger) (*CompatibleEmbedder, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return NewCompatibleEmbedder(model, baseURL, "", dimension, batchSize, logger)
}

func (e *CompatibleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	e.logger.Debug("embedding texts", zap.Int("count", len(texts)))
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	// Unknown models report their size on first use.
	if len(vectors) > 0 && e.dimension.Load() == 0 {
		e.dimension.CompareAndSwap(0, int64(len(vectors[0])))
	}
	return vectors, nil
}

func (e *CompatibleEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *CompatibleEmbedder) ModelName() string {
	return e.model
}
