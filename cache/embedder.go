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


package cache

import (
	"context"

	"github.com/poiesic/lexindex/ai"
)

// cachingEmbedder wraps an ai.Embedder with a read-through cache.
type cachingEmbedder struct {
	inner ai.Embedder
	cache *Cache
	model string
}

// NewEmbedder wraps inner so that repeated embeddings of the same text are
// served from the cache. The model name is part of the cache key, so the
// same cache directory can be shared across models.
func NewEmbedder(inner ai.Embedder, c *Cache, model string) (ai.Embedder, error) {
	if inner == nil {
		return nil, ErrNilEmbedder
	}
	if c == nil {
		return nil, ErrNilCache
	}
	return &cachingEmbedder{inner: inner, cache: c, model: model}, nil
}

// EmbedText returns the cached vector for text, computing it on a miss.
func (e *cachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.cache.GetOrCompute(ctx, e.model, text, func(ctx context.Context) ([]float32, error) {
		return e.inner.EmbedText(ctx, text)
	})
}

// EmbedTexts embeds a batch, fetching cached entries first and sending only
// the misses to the inner embedder in a single call.
func (e *cachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vector, ok := e.cache.Lookup(e.model, text); ok {
			vectors[i] = vector
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	computed, err := e.inner.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missing) {
		return nil, ErrBatchMismatch
	}

	for j, vector := range computed {
		vectors[missingIdx[j]] = vector
		if err := e.cache.Put(e.model, missing[j], vector); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}
