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


package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/lexindex/ai"
	"github.com/poiesic/lexindex/core"
)

// Pipeline embeds document batches concurrently through a worker pool.
// Individual document failures are logged and skipped so one bad document
// never sinks a batch.
type Pipeline struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	modelName string
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithModelName records the embedding model identifier in each document's
// metadata snapshot.
func WithModelName(name string) Option {
	return func(p *Pipeline) error {
		p.modelName = name
		return nil
	}
}

// NewPipeline creates a new embedding pipeline.
func NewPipeline(embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		embedder: embedder,
		pool:     pool,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Batch holds the three parallel sequences produced by EmbedDocuments,
// plus the count of documents that failed to embed. The sequences are
// always mutually consistent: entry i of each refers to the same document.
type Batch struct {
	Vectors   [][]float32
	Documents []core.Document
	Metadatas []core.Metadata
	Failed    int
}

type embedResult struct {
	vector []float32
	doc    core.Document
	meta   core.Metadata
	ok     bool
}

// EmbedDocuments embeds a batch of documents concurrently and returns the
// parallel sequences ready for indexing. Documents that fail validation or
// embedding are logged and excluded; the remainder keeps its input order.
// Cancellation is honored between task submissions: documents already
// submitted finish, unsubmitted ones are counted as failed.
func (p *Pipeline) EmbedDocuments(ctx context.Context, docs []core.Document) (*Batch, error) {
	results := make([]embedResult, len(docs))

	var wg sync.WaitGroup
	cancelled := false
	for i := range docs {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("batch cancelled mid-submission",
				"submitted", i, "total", len(docs))
			cancelled = true
			break
		}

		doc := docs[i]
		slot := &results[i]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			p.embedOne(ctx, doc, slot)
		})
		if err != nil {
			wg.Done()
			p.logger.Error("failed to submit embedding task", "err", err)
		}
	}
	wg.Wait()

	batch := &Batch{}
	for _, r := range results {
		if !r.ok {
			batch.Failed++
			continue
		}
		batch.Vectors = append(batch.Vectors, r.vector)
		batch.Documents = append(batch.Documents, r.doc)
		batch.Metadatas = append(batch.Metadatas, r.meta)
	}

	p.logger.Info("embedded document batch",
		"documents", len(docs),
		"embedded", len(batch.Documents),
		"failed", batch.Failed)

	if cancelled {
		return batch, ctx.Err()
	}
	return batch, nil
}

func (p *Pipeline) embedOne(ctx context.Context, doc core.Document, slot *embedResult) {
	if err := core.ValidateDocument(&doc); err != nil {
		p.logger.Warn("skipping invalid document", "err", err)
		return
	}

	vector, err := p.embedder.EmbedText(ctx, doc.Content)
	if err != nil {
		p.logger.Warn("skipping document after embedding failure",
			"source", doc.Metadata[core.MetaSource], "err", err)
		return
	}

	meta := doc.Metadata.Clone()
	if meta == nil {
		meta = core.Metadata{}
	}
	if p.modelName != "" {
		meta[core.MetaEmbeddingModel] = p.modelName
	}
	meta[core.MetaEmbeddingDimension] = strconv.Itoa(len(vector))
	meta[core.MetaTextLength] = strconv.Itoa(len(doc.Content))

	doc.Metadata = meta
	doc.Id = core.DocumentID(doc.Content, meta)

	slot.vector = vector
	slot.doc = doc
	slot.meta = meta
	slot.ok = true
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
