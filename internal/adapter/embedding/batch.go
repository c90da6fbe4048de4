package embedding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"qbank/internal/port"
)

// ProgressFunc is called after each completed batch with the number of texts
// embedded so far.
type ProgressFunc func(done, total int)

// BatchEmbed embeds texts in batches of batchSize on a pool of workers.
// Each batch writes to its own row range, so row i of the result is the
// embedding of texts[i] regardless of completion order. The first failure
// cancels the remaining batches and is returned.
func BatchEmbed(ctx context.Context, emb port.Embedder, texts []string, batchSize, workers int, progress ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	if workers <= 0 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		done     atomic.Int64
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if ctx.Err() != nil {
			break
		}

		start, end := start, end
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vectors, err := emb.Embed(ctx, texts[start:end])
			if err != nil {
				fail(fmt.Errorf("batch %d-%d: %w", start, end, err))
				return
			}
			if len(vectors) != end-start {
				fail(fmt.Errorf("batch %d-%d: got %d vectors", start, end, len(vectors)))
				return
			}
			copy(out[start:end], vectors)
			n := done.Add(int64(end - start))
			if progress != nil {
				progress(int(n), len(texts))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit batch: %w", submitErr))
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
