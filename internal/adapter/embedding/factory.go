package embedding

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"qbank/config"
	"qbank/internal/port"
)

// New creates the configured provider for model, wrapped with retry,
// optional serialization, and result checking. An empty model uses
// cfg.Model. The hash provider derives its dimension from a "hash-N" model
// name so bundles reload with the size they were built with.
func New(cfg config.EmbeddingConfig, model string, logger *zap.Logger) (port.Embedder, error) {
	if model == "" {
		model = cfg.Model
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		base port.Embedder
		err  error
	)
	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIEmbedder(cfg.APIKeyEnv, model, cfg.BaseURL, cfg.Dimension, logger)
	case "compatible":
		base, err = NewCompatibleEmbedder(model, cfg.BaseURL, cfg.APIKeyEnv, cfg.Dimension, cfg.BatchSize, logger)
	case "ollama":
		base, err = NewOllamaEmbedder(model, cfg.BaseURL, cfg.Dimension, cfg.BatchSize, logger)
	case "hash", "mock":
		base = NewHashEmbedder(hashDimension(model, cfg.Dimension), cfg.Ngram)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}

	emb := WithRetry(base, cfg.MaxRetries, cfg.RetryDelay, logger)
	if cfg.Serialize {
		emb = Serialized(emb)
	}
	return Checked(emb), nil
}

func hashDimension(model string, fallback int) int {
	if rest, ok := strings.CutPrefix(model, HashModelName+"-"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
