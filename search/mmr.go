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


package search

import (
	"context"

	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
	"github.com/poiesic/lexindex/index"
)

// mmrSearch fetches 3k semantically ranked candidates (filtered during
// selection) and greedily re-ranks them with maximal marginal relevance so
// near-duplicate chunks do not monopolize the results.
func (r *Retriever) mmrSearch(ctx context.Context, query string, k int, pred filter.Predicate) ([]core.SearchResult, error) {
	fetchK := k * 3

	candidates, err := r.semanticSearch(ctx, query, fetchK, pred, false)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []core.SearchResult{}, nil
	}

	queryVec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	vectors := make([][]float32, len(candidates))
	for i, cand := range candidates {
		vec, ok := r.index.VectorByID(cand.Document.Id)
		if !ok {
			// Candidate came from the index moments ago; only a concurrent
			// rebuild can make it vanish. Fall back to a zero vector rather
			// than failing the whole query.
			vec = make([]float32, len(queryVec))
		}
		vectors[i] = vec
	}

	selected := maximalMarginalRelevance(index.Normalize(queryVec), vectors, k, r.lambda)

	results := make([]core.SearchResult, 0, len(selected))
	for _, i := range selected {
		results = append(results, candidates[i])
	}
	return results, nil
}

// maximalMarginalRelevance greedily selects up to k vectors balancing query
// relevance against redundancy with already-selected vectors:
//
//	argmax over remaining d of  lambda*sim(q,d) - (1-lambda)*max sim(d, selected)
//
// The first pick is always the most query-relevant candidate. Ties resolve
// to the lowest candidate position, so selection order is deterministic for
// fixed embeddings and lambda. Returned values are positions into vectors in
// selection order.
func maximalMarginalRelevance(query []float32, vectors [][]float32, k int, lambda float32) []int {
	if len(vectors) == 0 || k <= 0 {
		return nil
	}
	if k > len(vectors) {
		k = len(vectors)
	}

	simToQuery := make([]float32, len(vectors))
	for i, v := range vectors {
		simToQuery[i] = index.Dot(query, v)
	}

	first := 0
	for i := 1; i < len(vectors); i++ {
		if simToQuery[i] > simToQuery[first] {
			first = i
		}
	}

	selected := []int{first}
	remaining := make(map[int]bool, len(vectors)-1)
	for i := range vectors {
		if i != first {
			remaining[i] = true
		}
	}

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		var bestScore float32
		for i := range vectors {
			if !remaining[i] {
				continue
			}
			var maxSim float32
			for j, s := range selected {
				sim := index.Dot(vectors[i], vectors[s])
				if j == 0 || sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*simToQuery[i] - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		selected = append(selected, bestIdx)
		delete(remaining, bestIdx)
	}
	return selected
}
