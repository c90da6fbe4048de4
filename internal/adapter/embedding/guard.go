package embedding

import (
	"context"
	"fmt"
	"sync"

	"qbank/internal/domain"
	"qbank/internal/port"
)

// SerializedEmbedder funnels Embed calls through a mutex for providers that
// are not safe for concurrent use.
type SerializedEmbedder struct {
	port.Embedder
	mu sync.Mutex
}

func Serialized(emb port.Embedder) *SerializedEmbedder {
	return &SerializedEmbedder{Embedder: emb}
}

func (s *SerializedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Embedder.Embed(ctx, texts)
}

// CheckedEmbedder turns every provider failure into a domain.ErrProvider and
// rejects responses with the wrong number of vectors or mixed dimensions.
type CheckedEmbedder struct {
	port.Embedder
}

func Checked(emb port.Embedder) *CheckedEmbedder {
	return &CheckedEmbedder{Embedder: emb}
}

func (c *CheckedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := c.Embedder.Embed(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProvider, c.ModelName(), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts", domain.ErrProvider, c.ModelName(), len(vectors), len(texts))
	}

	dim := c.Dimension()
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: %s vector %d has dimension %d, want %d", domain.ErrProvider, c.ModelName(), i, len(v), dim)
		}
	}
	return vectors, nil
}
