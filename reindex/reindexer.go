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


package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/poiesic/lexindex/ai"
	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/index"
	"github.com/poiesic/lexindex/store"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of documents to embed in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every document in a persisted snapshot with a new
// embedding model and writes the rebuilt snapshot back. Documents and their
// metadata survive; only vectors and the embedding-model metadata change.
type Reindexer struct {
	snapshots *store.Store
	embedder  ai.Embedder
	modelName string
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(snapshots *store.Store, embedder ai.Embedder, modelName string, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reindexer{
		snapshots: snapshots,
		embedder:  embedder,
		modelName: modelName,
		config:    config,
		progress:  progress,
		logger:    slog.Default().With("component", "reindex"),
	}
}

// Run executes the reindexing operation. The whole snapshot is re-embedded
// before anything is written back, so an embedding failure partway through
// leaves the old snapshot untouched.
func (r *Reindexer) Run(ctx context.Context) error {
	ix, err := r.snapshots.Load()
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if ix == nil {
		return ErrNoSnapshot
	}

	_, docs, metas := ix.Snapshot()
	total := len(docs)

	fmt.Fprintf(r.progress, "Starting reindexing of %d documents (batch size: %d, model: %s)\n",
		total, r.config.BatchSize, r.modelName)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	vectors := make([][]float32, 0, total)
	for start := 0; start < total; start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > total {
			end = total
		}

		batch, err := r.embedBatch(ctx, docs[start:end])
		if err != nil {
			return err
		}
		vectors = append(vectors, batch...)
		tracker.Update(end)
	}
	tracker.Finish()

	for i := range metas {
		meta := metas[i].Clone()
		if meta == nil {
			meta = core.Metadata{}
		}
		meta[core.MetaEmbeddingModel] = r.modelName
		meta[core.MetaEmbeddingDimension] = strconv.Itoa(len(vectors[i]))
		metas[i] = meta
		docs[i].Metadata = meta
	}

	rebuilt, err := index.Restore(vectors, docs, metas)
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	if err := r.snapshots.Save(rebuilt); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. Processed %d documents in %v (%.1f documents/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}

// embedBatch embeds one batch of documents with retry.
func (r *Reindexer) embedBatch(ctx context.Context, docs []core.Document) ([][]float32, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, r.logger, func() error {
		var err error
		embeddings, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
	}

	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(embeddings))
	}
	return embeddings, nil
}
