package embedding

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"qbank/internal/port"
)

// RetryEmbedder retries failed Embed calls with exponential backoff.
type RetryEmbedder struct {
	port.Embedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// WithRetry wraps emb. maxAttempts below 2 returns emb unchanged.
func WithRetry(emb port.Embedder, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) port.Embedder {
	if maxAttempts < 2 {
		return emb
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryEmbedder{
		Embedder:    emb,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger.With(zap.String("component", "embedder-retry")),
	}
}

func (r *RetryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		vectors, err := r.Embedder.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn("embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return nil, lastErr
}
