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
	"sort"
	"strings"

	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
)

// LexicalScore computes a term-frequency relevance score for a query against
// document content. The query is split on whitespace, which works for both
// scripts in the corpus; for each query token the number of whole-token
// occurrences in the lowercased content is divided by the content's token
// count, and the per-token scores are summed. A document sharing no tokens
// with the query scores 0.
//
// Matching is word-boundary tokenized rather than raw substring containment,
// so query terms do not count occurrences inside larger words.
func LexicalScore(query, content string) float32 {
	queryTokens := strings.Fields(strings.ToLower(query))
	docTokens := strings.Fields(strings.ToLower(content))
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}

	counts := make(map[string]int, len(docTokens))
	for _, tok := range docTokens {
		counts[tok]++
	}

	var score float32
	for _, tok := range queryTokens {
		if c := counts[tok]; c > 0 {
			score += float32(c) / float32(len(docTokens))
		}
	}
	return score
}

// lexicalSearch scores every stored document lexically, applying the
// predicate during scanning, and returns up to k positive-scoring documents
// in descending score order with ties broken by insertion order.
func (r *Retriever) lexicalSearch(query string, k int, pred filter.Predicate) []core.SearchResult {
	var results []core.SearchResult
	for _, doc := range r.index.Documents() {
		if pred != nil && !pred.Matches(doc.Metadata) {
			continue
		}
		score := LexicalScore(query, doc.Content)
		if score > 0 {
			results = append(results, core.SearchResult{Document: doc, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
