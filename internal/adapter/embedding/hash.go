package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"qbank/internal/adapter/analyzer"
)

// HashModelName is the model identifier recorded for HashEmbedder bundles.
const HashModelName = "hash"

// HashEmbedder maps text to a signed feature-hashing vector over word tokens
// and character n-grams, L2-normalized. It needs no model download and is
// deterministic, so it serves offline runs and tests. Texts sharing words get
// positive cosine similarity; identical texts get identical vectors.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

// NewHashEmbedder creates a HashEmbedder. ngram below 2 hashes whole words only.
func NewHashEmbedder(dimension, ngram int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(ngram),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, feature := range e.tokenizer.Features(text) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return fmt.Sprintf("%s-%d", HashModelName, e.dimension)
}
