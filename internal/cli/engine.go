package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"qbank/internal/adapter/cache"
	"qbank/internal/adapter/corpus"
	"qbank/internal/adapter/embedding"
	"qbank/internal/adapter/fs"
	"qbank/internal/port"
	"qbank/internal/usecase"
)

// newEngine wires the engine for the current config and data directory.
func newEngine(progress embedding.ProgressFunc) (*usecase.Engine, *corpus.Loader) {
	cfg := GetConfig()
	log := GetLogger()

	walker := fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes)
	loader := corpus.NewLoader(walker, GetRootDir(), cfg.Corpus.DelimiterRune(), log)
	factory := func(model string) (port.Embedder, error) {
		return embedding.New(cfg.Embedding, model, log)
	}

	opts := []usecase.Option{
		usecase.WithLogger(log),
		usecase.WithCorpus(loader),
	}
	if cfg.Retrieve.CacheSize > 0 {
		opts = append(opts, usecase.WithCache(cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)))
	}
	if progress != nil {
		opts = append(opts, usecase.WithProgress(progress))
	}

	return usecase.NewEngine(cfg, cfg.BundlePath(GetRootDir()), factory, opts...), loader
}

// openEngine creates and initializes an engine, showing a progress bar on w
// if the bundle has to be built.
func openEngine(ctx context.Context, w io.Writer, opts usecase.InitOptions) (*usecase.Engine, *usecase.InitResult, error) {
	progress := newProgress(w)
	engine, loader := newEngine(progress)

	res, err := engine.Init(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	if res.Built {
		report := loader.Report()
		fmt.Fprintf(w, "Built bundle (%s): %d questions from %d rows", res.Reason, res.Meta.Rows, report.Rows)
		if dropped := report.DroppedMissingQuestion + report.DroppedEmptyCleaned; dropped > 0 {
			fmt.Fprintf(w, ", %d dropped", dropped)
		}
		fmt.Fprintln(w)
	}
	return engine, res, nil
}

// newProgress returns a ProgressFunc that draws an embedding progress bar.
// It is safe for concurrent use.
func newProgress(w io.Writer) embedding.ProgressFunc {
	var (
		bar       *progressbar.ProgressBar
		barMu     sync.Mutex
		startTime time.Time
		highest   int
	)

	return func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}

		// Batches finish out of order.
		if done <= highest {
			return
		}
		highest = done
		_ = bar.Set(done)

		elapsed := time.Since(startTime)
		if rate := float64(done) / elapsed.Seconds(); rate > 0 && done < total {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
