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
	"sort"

	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
)

// hybridSearch runs semantic and lexical search independently, each over 2k
// candidates, and blends the scores linearly:
//
//	hybrid = alpha*semantic + (1-alpha)*lexical
//
// A document present in only one result set keeps 0 for the missing signal.
// This rewards documents strong in either signal while favoring semantic
// agreement at the default alpha of 0.7.
func (r *Retriever) hybridSearch(ctx context.Context, query string, k int, pred filter.Predicate) ([]core.SearchResult, error) {
	semantic, err := r.semanticSearch(ctx, query, k*2, pred, false)
	if err != nil {
		return nil, err
	}
	lexical := r.lexicalSearch(query, k*2, pred)

	type blend struct {
		doc      core.Document
		semantic float32
		lexical  float32
	}
	combined := make(map[core.ID]*blend, len(semantic)+len(lexical))
	order := make([]core.ID, 0, len(semantic)+len(lexical))

	for _, res := range semantic {
		combined[res.Document.Id] = &blend{doc: res.Document, semantic: res.Score}
		order = append(order, res.Document.Id)
	}
	for _, res := range lexical {
		if b, ok := combined[res.Document.Id]; ok {
			b.lexical = res.Score
			continue
		}
		combined[res.Document.Id] = &blend{doc: res.Document, lexical: res.Score}
		order = append(order, res.Document.Id)
	}

	results := make([]core.SearchResult, 0, len(order))
	for _, id := range order {
		b := combined[id]
		results = append(results, core.SearchResult{
			Document: b.doc,
			Score:    r.alpha*b.semantic + (1-r.alpha)*b.lexical,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
