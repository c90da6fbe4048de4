package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"qbank/config"
	"qbank/internal/adapter/cache"
	"qbank/internal/adapter/corpus"
	"qbank/internal/adapter/embedding"
	"qbank/internal/adapter/index"
	"qbank/internal/adapter/store"
	"qbank/internal/domain"
	"qbank/internal/port"
)

// ErrAlreadyInitialized is returned by every Init call after the first
// successful one.
var ErrAlreadyInitialized = errors.New("engine already initialized")

// EmbedderFactory creates the embedding provider for a model. An empty model
// means the configured one.
type EmbedderFactory func(model string) (port.Embedder, error)

type phase int

const (
	phaseNotReady phase = iota
	phaseReady
)

// snapshot is the immutable query-serving state. Records, index rows and
// matrix rows correspond by position.
type snapshot struct {
	records  []domain.QuestionRecord
	index    *index.BruteForce
	embedder port.Embedder
	meta     store.Meta
}

type engineState struct {
	phase phase
	snap  *snapshot // set only in phaseReady
}

var notReady = &engineState{phase: phaseNotReady}

// Engine answers semantic queries over the question bank. Create one with
// NewEngine, call Init once, then share it between request handlers.
type Engine struct {
	cfg          *config.Config
	bundlePath   string
	newEmbedder  EmbedderFactory
	source       port.CorpusSource
	cache        *cache.QueryCache
	progress     embedding.ProgressFunc
	maxNeighbors int
	logger       *zap.Logger

	state    atomic.Pointer[engineState]
	initMu   sync.Mutex // held for the whole of Init and Save
	initDone bool
	ready    chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache enables result caching.
func WithCache(c *cache.QueryCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMaxNeighbors overrides the configured build-time neighbor cap.
func WithMaxNeighbors(m int) Option {
	return func(e *Engine) {
		if m > 0 {
			e.maxNeighbors = m
		}
	}
}

// WithCorpus sets the source used to build a bundle and to detect a changed
// corpus. Without one the engine can only load an existing bundle.
func WithCorpus(source port.CorpusSource) Option {
	return func(e *Engine) { e.source = source }
}

// WithProgress reports embedding progress during a build.
func WithProgress(fn embedding.ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// NewEngine creates an engine that persists its bundle at bundlePath.
func NewEngine(cfg *config.Config, bundlePath string, newEmbedder EmbedderFactory, opts ...Option) *Engine {
	e := &Engine{
		cfg:          cfg,
		bundlePath:   bundlePath,
		newEmbedder:  newEmbedder,
		maxNeighbors: cfg.Index.MaxNeighbors,
		logger:       zap.NewNop(),
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "engine"))
	e.state.Store(notReady)
	return e
}

// InitOptions controls Init.
type InitOptions struct {
	// Rebuild ignores any saved bundle.
	Rebuild bool
	// SkipStaleCheck loads a saved bundle without comparing it to the
	// current configuration and corpus.
	SkipStaleCheck bool
}

// InitResult describes how the engine became ready.
type InitResult struct {
	Built  bool
	Reason string // why a build was needed
	Meta   store.Meta
	Index  *IndexResult // set when Built
}

// Init loads the saved bundle, or builds and saves a new one when none
// exists or the saved one is stale. Queries fail with domain.ErrNotReady
// until Init returns successfully. Init may succeed only once.
func (e *Engine) Init(ctx context.Context, opts InitOptions) (*InitResult, error) {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.initDone {
		return nil, ErrAlreadyInitialized
	}

	snap, result, err := e.loadOrBuild(ctx, opts)
	if err != nil {
		return nil, err
	}

	e.publish(snap)
	e.initDone = true
	close(e.ready)

	e.logger.Info("engine ready",
		zap.Int("questions", len(snap.records)),
		zap.String("model", snap.meta.ModelName),
		zap.Int("dimension", snap.meta.Dimension),
		zap.Bool("built", result.Built),
	)
	return result, nil
}

func (e *Engine) loadOrBuild(ctx context.Context, opts InitOptions) (*snapshot, *InitResult, error) {
	var records []domain.QuestionRecord
	reason := "no saved bundle"

	switch {
	case opts.Rebuild:
		reason = "rebuild requested"
	case store.Exists(e.bundlePath):
		meta, err := store.Inspect(e.bundlePath)
		if err != nil {
			return nil, nil, err
		}

		var fingerprint string
		if e.source != nil && !opts.SkipStaleCheck {
			records, err = e.source.Load(ctx)
			switch {
			case err == nil:
				fingerprint = corpus.Fingerprint(records)
			case errors.Is(err, os.ErrNotExist):
				e.logger.Debug("no corpus available, skipping corpus check", zap.Error(err))
			default:
				return nil, nil, err
			}
		}

		stale := store.StaleResult{}
		if !opts.SkipStaleCheck {
			stale = store.CheckStale(meta, e.cfg, fingerprint)
		}
		if !stale.NeedsRebuild {
			snap, err := e.load()
			if err != nil {
				return nil, nil, err
			}
			return snap, &InitResult{Meta: snap.meta}, nil
		}

		reason = stale.Reason
		e.logger.Warn("saved bundle is stale, rebuilding",
			zap.String("reason", stale.Reason),
			zap.String("path", e.bundlePath),
		)
	}

	return e.build(ctx, records, reason)
}

// load reads the saved bundle and recreates the provider it was built with.
func (e *Engine) load() (*snapshot, error) {
	b, err := store.Load(e.bundlePath)
	if err != nil {
		return nil, err
	}

	emb, err := e.newEmbedder(b.Meta.ModelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProvider, b.Meta.ModelName, err)
	}
	if d := emb.Dimension(); d != 0 && d != b.Meta.Dimension {
		return nil, fmt.Errorf("%w: model %s produces %d-dimensional vectors, bundle has %d",
			domain.ErrProvider, b.Meta.ModelName, d, b.Meta.Dimension)
	}

	e.logger.Info("bundle loaded",
		zap.String("path", e.bundlePath),
		zap.String("bundle_id", b.Meta.BundleID),
		zap.Int("rows", b.Meta.Rows),
	)
	return &snapshot{records: b.Records, index: b.Index, embedder: emb, meta: b.Meta}, nil
}

// build embeds records (read from the corpus source when nil) and saves the
// result.
func (e *Engine) build(ctx context.Context, records []domain.QuestionRecord, reason string) (*snapshot, *InitResult, error) {
	if records == nil {
		if e.source == nil {
			return nil, nil, fmt.Errorf("%w: no saved bundle and no corpus configured", domain.ErrInvalidArgument)
		}
		var err error
		records, err = e.source.Load(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	emb, err := e.newEmbedder("")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}

	e.logger.Info("building bundle", zap.String("reason", reason), zap.Int("questions", len(records)))
	uc := NewIndexUseCase(
		emb,
		e.cfg.Embedding.BatchSize,
		e.cfg.Embedding.Workers,
		e.maxNeighbors,
		store.ComputeConfigHash(e.cfg),
		e.logger,
	)
	bundle, indexed, err := uc.Build(ctx, records, e.progress)
	if err != nil {
		return nil, nil, err
	}

	meta, err := store.Save(e.bundlePath, bundle)
	if err != nil {
		return nil, nil, err
	}

	snap := &snapshot{records: bundle.Records, index: bundle.Index, embedder: emb, meta: meta}
	return snap, &InitResult{Built: true, Reason: reason, Meta: meta, Index: indexed}, nil
}

func (e *Engine) publish(snap *snapshot) {
	e.state.Store(&engineState{phase: phaseReady, snap: snap})
	if e.cache != nil {
		e.cache.Invalidate()
	}
}

// current returns the serving snapshot or domain.ErrNotReady.
func (e *Engine) current() (*snapshot, error) {
	st := e.state.Load()
	switch st.phase {
	case phaseReady:
		return st.snap, nil
	default:
		return nil, domain.ErrNotReady
	}
}

// Ready reports whether Init has completed.
func (e *Engine) Ready() bool {
	return e.state.Load().phase == phaseReady
}

// WaitReady blocks until Init completes or ctx is done.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats describes the loaded bundle.
func (e *Engine) Stats() (domain.Stats, error) {
	snap, err := e.current()
	if err != nil {
		return domain.Stats{}, err
	}
	return snap.stats(), nil
}

// Snapshot is Stats without the readiness error: before Init it reports an
// empty engine.
func (e *Engine) Snapshot() domain.Stats {
	snap, err := e.current()
	if err != nil {
		return domain.Stats{}
	}
	return snap.stats()
}

func (s *snapshot) stats() domain.Stats {
	st := domain.Stats{
		TotalQuestions: len(s.records),
		ModelName:      s.meta.ModelName,
		HasEmbeddings:  s.index != nil && s.index.Rows() > 0,
		HasIndex:       s.index != nil,
	}
	if st.HasEmbeddings {
		dim := s.index.Dim()
		st.EmbeddingDimension = &dim
	}
	return st
}

// Meta returns the metadata of the loaded bundle.
func (e *Engine) Meta() (store.Meta, error) {
	snap, err := e.current()
	if err != nil {
		return store.Meta{}, err
	}
	return snap.meta, nil
}

// Records returns the loaded corpus. The slice must not be modified.
func (e *Engine) Records() ([]domain.QuestionRecord, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	return snap.records, nil
}

// MaxNeighbors returns the largest k Search accepts.
func (e *Engine) MaxNeighbors() (int, error) {
	snap, err := e.current()
	if err != nil {
		return 0, err
	}
	return snap.index.MaxNeighbors(), nil
}

// Save writes the loaded bundle to path under a new bundle ID. It waits for
// a running Init. Saving to the engine's own bundle path updates the served
// metadata.
func (e *Engine) Save(path string) (store.Meta, error) {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	snap, err := e.current()
	if err != nil {
		return store.Meta{}, err
	}

	meta := snap.meta
	meta.CreatedAt = time.Time{}
	saved, err := store.Save(path, store.Bundle{
		Meta:    meta,
		Records: snap.records,
		Matrix:  snap.index.Matrix(),
		Index:   snap.index,
	})
	if err != nil {
		return store.Meta{}, err
	}

	if path == e.bundlePath {
		next := *snap
		next.meta = saved
		e.state.Store(&engineState{phase: phaseReady, snap: &next})
	}
	return saved, nil
}
