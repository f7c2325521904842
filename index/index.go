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


package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
)

// Index stores unit-normalized embedding vectors together with their
// documents and metadata snapshots, and answers top-k similarity queries by
// dense exact search. The three internal sequences always have identical
// length; any mutation extends all three under the write lock.
//
// Search cost is O(n*d) per query. This is the seam where an approximate
// index could be swapped in without changing the public contract.
type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	docs    []core.Document
	metas   []core.Metadata
	slots   map[core.ID]int
}

// New creates an empty index. The dimension is fixed by the first Add.
func New() *Index {
	return &Index{
		slots: make(map[core.ID]int),
	}
}

// Restore builds an index from previously persisted sequences. The input is
// validated the same way Add validates fresh batches.
func Restore(vectors [][]float32, docs []core.Document, metas []core.Metadata) (*Index, error) {
	ix := New()
	if err := ix.Add(vectors, docs, metas); err != nil {
		return nil, err
	}
	return ix, nil
}

// Add appends vectors, documents, and metadata snapshots to the index.
// All three slices must have equal length. Vectors are copied and normalized
// to unit L2 norm before storage. The batch is validated up front so a
// failed Add leaves the index unchanged.
func (ix *Index) Add(vectors [][]float32, docs []core.Document, metas []core.Metadata) error {
	if len(vectors) != len(docs) || len(docs) != len(metas) {
		return fmt.Errorf("%w: %d vectors, %d documents, %d metadata entries",
			ErrShapeMismatch, len(vectors), len(docs), len(metas))
	}
	if len(vectors) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
		if Norm(v) == 0 {
			return fmt.Errorf("%w: vector %d", ErrZeroVector, i)
		}
	}

	ix.dim = dim
	for i, v := range vectors {
		slot := len(ix.vectors)
		ix.vectors = append(ix.vectors, Normalize(v))
		ix.docs = append(ix.docs, docs[i])
		ix.metas = append(ix.metas, metas[i])
		ix.slots[docs[i].Id] = slot
	}
	return nil
}

// SearchOption configures a Search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	pred      filter.Predicate
	threshold *float32
}

// WithFilter restricts results to documents whose metadata matches the
// predicate. Filtering happens during candidate selection, not after.
func WithFilter(pred filter.Predicate) SearchOption {
	return func(o *searchOptions) {
		o.pred = pred
	}
}

// WithScoreThreshold discards candidates scoring below the threshold.
func WithScoreThreshold(threshold float32) SearchOption {
	return func(o *searchOptions) {
		o.threshold = &threshold
	}
}

// Search returns up to k documents ranked by cosine similarity to the query
// vector, in descending score order with ties broken by insertion order.
// The scan examines min(3k, total) top candidates so post-filtering still has
// room to fill k results. Searching an empty index returns an empty slice.
func (ix *Index) Search(query []float32, k int, opts ...SearchOption) ([]core.SearchResult, error) {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 || k <= 0 {
		return []core.SearchResult{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			ErrDimensionMismatch, len(query), ix.dim)
	}

	q := Normalize(query)

	type candidate struct {
		slot  int
		score float32
	}
	candidates := make([]candidate, len(ix.vectors))
	for i, v := range ix.vectors {
		candidates[i] = candidate{slot: i, score: Dot(q, v)}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	searchK := k * 3
	if searchK > len(candidates) {
		searchK = len(candidates)
	}

	results := make([]core.SearchResult, 0, k)
	for _, c := range candidates[:searchK] {
		if o.threshold != nil && c.score < *o.threshold {
			continue
		}
		if o.pred != nil && !o.pred.Matches(ix.docs[c.slot].Metadata) {
			continue
		}
		results = append(results, core.SearchResult{
			Document: ix.docs[c.slot],
			Score:    c.score,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// VectorByID returns the stored unit-normalized vector for a document ID.
// The returned slice aliases internal memory and must not be mutated.
func (ix *Index) VectorByID(id core.ID) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	slot, ok := ix.slots[id]
	if !ok {
		return nil, false
	}
	return ix.vectors[slot], true
}

// Documents returns a copy of the stored document sequence in insertion
// order. The lexical scorer scans this for keyword matching.
func (ix *Index) Documents() []core.Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]core.Document, len(ix.docs))
	copy(out, ix.docs)
	return out
}

// Snapshot returns shallow copies of the three parallel sequences for
// serialization. Individual vectors and documents are never mutated after
// insertion, so sharing their backing memory with a reader is safe.
func (ix *Index) Snapshot() (vectors [][]float32, docs []core.Document, metas []core.Metadata) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	vectors = make([][]float32, len(ix.vectors))
	copy(vectors, ix.vectors)
	docs = make([]core.Document, len(ix.docs))
	copy(docs, ix.docs)
	metas = make([]core.Metadata, len(ix.metas))
	copy(metas, ix.metas)
	return vectors, docs, metas
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dimension returns the vector dimension, or 0 for an empty index.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Stats summarizes the index contents including category and language
// distributions taken from the metadata snapshots.
func (ix *Index) Stats() core.IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := core.IndexStats{
		TotalVectors:   len(ix.vectors),
		Dimension:      ix.dim,
		TotalDocuments: len(ix.docs),
		Categories:     make(map[string]int),
		Languages:      make(map[string]int),
	}
	for _, meta := range ix.metas {
		cat := meta[core.MetaCategory]
		if cat == "" {
			cat = "unknown"
		}
		lang := meta[core.MetaLanguage]
		if lang == "" {
			lang = "unknown"
		}
		stats.Categories[cat]++
		stats.Languages[lang]++
	}
	return stats
}
