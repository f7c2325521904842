// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package lexindex

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/poiesic/lexindex/ai"
	"github.com/poiesic/lexindex/ai/openai"
	"github.com/poiesic/lexindex/cache"
	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
	"github.com/poiesic/lexindex/index"
	"github.com/poiesic/lexindex/ingestion"
	"github.com/poiesic/lexindex/search"
	"github.com/poiesic/lexindex/store"
)

// Engine ties the pieces together: the embedding provider behind a
// persistent cache, the ingestion pipeline, the in-memory vector index,
// the retriever and the snapshot store. One Engine owns one index under
// one data directory.
type Engine struct {
	provider ai.Provider
	cache    *cache.Cache
	embedder ai.Embedder
	pipeline *ingestion.Pipeline
	store    *store.Store
	logger   *slog.Logger

	searchOpts []search.Option

	mu        sync.RWMutex
	index     *index.Index
	retriever *search.Retriever
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig   *ai.Config
	provider   ai.Provider
	poolSize   int
	cacheTTL   time.Duration
	searchOpts []search.Option
	logger     *slog.Logger
}

// WithAIConfig sets the embedding service configuration used to build the
// default OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built provider, bypassing the default
// OpenAI-compatible one. Used by tests and embedded deployments.
func WithProvider(provider ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithPoolSize sets the ingestion worker pool size.
func WithPoolSize(size int) EngineOption {
	return func(o *engineOptions) {
		o.poolSize = size
	}
}

// WithCacheTTL bounds embedding cache growth by expiring entries.
func WithCacheTTL(ttl time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.cacheTTL = ttl
	}
}

// WithSearchOptions passes tuning options through to the retriever.
func WithSearchOptions(opts ...search.Option) EngineOption {
	return func(o *engineOptions) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// WithEngineLogger sets a custom logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// New opens an engine over the given data directory. A snapshot saved by a
// previous run is loaded automatically; an empty directory is a cold start
// and queries return ErrIndexNotBuilt until the first build.
func New(dataDir string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	provider := options.provider
	if provider == nil {
		p, err := openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	var cacheOpts []cache.Option
	if options.cacheTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(options.cacheTTL))
	}
	embCache, err := cache.Open(filepath.Join(dataDir, "cache"), cacheOpts...)
	if err != nil {
		provider.Close()
		return nil, err
	}

	embedder, err := cache.NewEmbedder(provider.Embedder(), embCache, provider.EmbeddingModel())
	if err != nil {
		embCache.Close()
		provider.Close()
		return nil, err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithModelName(provider.EmbeddingModel()),
		ingestion.WithLogger(options.logger),
	}
	if options.poolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(options.poolSize))
	}
	pipeline, err := ingestion.NewPipeline(embedder, pipelineOpts...)
	if err != nil {
		embCache.Close()
		provider.Close()
		return nil, err
	}

	snapshots, err := store.New(filepath.Join(dataDir, "index"))
	if err != nil {
		pipeline.Release()
		embCache.Close()
		provider.Close()
		return nil, err
	}

	e := &Engine{
		provider:   provider,
		cache:      embCache,
		embedder:   embedder,
		pipeline:   pipeline,
		store:      snapshots,
		searchOpts: options.searchOpts,
		logger:     options.logger.With("component", "engine"),
	}

	ix, err := snapshots.Load()
	if err != nil {
		e.Close()
		return nil, err
	}
	if ix != nil {
		if err := e.install(ix); err != nil {
			e.Close()
			return nil, err
		}
	}

	return e, nil
}

// install swaps in a new index and a retriever over it.
func (e *Engine) install(ix *index.Index) error {
	retriever, err := search.NewRetriever(ix, e.embedder, e.searchOpts...)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.index = ix
	e.retriever = retriever
	e.mu.Unlock()
	return nil
}

// BuildIndex embeds the documents and replaces the engine's index with a
// fresh one built from them. The new snapshot is persisted before the
// method returns. Documents that fail to embed are skipped.
func (e *Engine) BuildIndex(ctx context.Context, docs []core.Document) (core.IndexStats, error) {
	if len(docs) == 0 {
		return core.IndexStats{}, ErrNoDocuments
	}

	batch, err := e.pipeline.EmbedDocuments(ctx, docs)
	if err != nil {
		return core.IndexStats{}, err
	}
	if len(batch.Documents) == 0 {
		return core.IndexStats{}, ErrNoDocuments
	}

	ix, err := index.Restore(batch.Vectors, batch.Documents, batch.Metadatas)
	if err != nil {
		return core.IndexStats{}, err
	}

	if err := e.store.Save(ix); err != nil {
		return core.IndexStats{}, err
	}
	if err := e.install(ix); err != nil {
		return core.IndexStats{}, err
	}

	stats := ix.Stats()
	e.logger.Info("built index",
		"documents", stats.TotalDocuments,
		"dimension", stats.Dimension,
		"failed", batch.Failed)
	return stats, nil
}

// AddDocuments embeds the documents and appends them to the existing index,
// persisting the grown snapshot on success. Returns the number of documents
// actually added. Cold engines get a fresh index.
func (e *Engine) AddDocuments(ctx context.Context, docs []core.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	batch, err := e.pipeline.EmbedDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}
	if len(batch.Documents) == 0 {
		return 0, ErrNoDocuments
	}

	e.mu.RLock()
	ix := e.index
	e.mu.RUnlock()

	if ix == nil {
		fresh, err := index.Restore(batch.Vectors, batch.Documents, batch.Metadatas)
		if err != nil {
			return 0, err
		}
		if err := e.store.Save(fresh); err != nil {
			return 0, err
		}
		if err := e.install(fresh); err != nil {
			return 0, err
		}
		return len(batch.Documents), nil
	}

	if err := ix.Add(batch.Vectors, batch.Documents, batch.Metadatas); err != nil {
		return 0, err
	}
	if err := e.store.Save(ix); err != nil {
		return 0, err
	}

	e.logger.Info("added documents",
		"added", len(batch.Documents),
		"failed", batch.Failed,
		"total", ix.Len())
	return len(batch.Documents), nil
}

// Query retrieves the k most relevant documents for the query text using
// the given strategy. A nil predicate applies no metadata filtering beyond
// any auto-detected one.
func (e *Engine) Query(ctx context.Context, query string, k int, strategy search.Strategy, pred filter.Predicate) ([]core.SearchResult, error) {
	e.mu.RLock()
	retriever := e.retriever
	e.mu.RUnlock()

	if retriever == nil {
		return nil, ErrIndexNotBuilt
	}
	return retriever.Retrieve(ctx, query, k, strategy, pred)
}

// Stats reports the current index composition.
func (e *Engine) Stats() (core.IndexStats, error) {
	e.mu.RLock()
	ix := e.index
	e.mu.RUnlock()

	if ix == nil {
		return core.IndexStats{}, ErrIndexNotBuilt
	}
	return ix.Stats(), nil
}

// Close flushes the embedding cache and releases all resources.
// The engine should not be used after calling Close.
func (e *Engine) Close() error {
	e.pipeline.Release()

	if err := e.cache.Flush(); err != nil {
		e.logger.Error("error flushing embedding cache", "err", err)
	}
	if err := e.cache.Close(); err != nil {
		e.logger.Error("error closing embedding cache", "err", err)
		return err
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		return err
	}
	return nil
}
