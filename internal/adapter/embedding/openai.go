package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	logger    *zap.Logger
}

// NewOpenAIEmbedder creates an embedder reading its API key from apiKeyEnv.
// An empty baseURL uses the public endpoint.
func NewOpenAIEmbedder(apiKeyEnv, model, baseURL string, dimension int, logger *zap.Logger) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if dimension <= 0 {
		dimension = knownDimension(model)
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
		logger:    logger.With(zap.String("component", "openai-embedder")),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const maxBatch = 100
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding batch", zap.Int("count", len(texts)))

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range for %d inputs", data.Index, len(texts))
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// knownDimension returns the output size of well-known embedding models,
// or 0 when the model is unknown.
func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2", "all-minilm":
		return 384
	case "nomic-embed-text", "sentence-transformers/paraphrase-multilingual-mpnet-base-v2":
		return 768
	case "mxbai-embed-large", "bge-m3":
		return 1024
	}
	return 0
}
