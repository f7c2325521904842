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


// Package search provides multi-strategy retrieval over a vector index.
//
// The Retriever type dispatches over a closed set of strategies:
//   - Semantic: embedding cosine similarity with a score threshold
//   - Lexical: whitespace-tokenized term-frequency scoring
//   - Hybrid: linear blend of the two signals (alpha weighting)
//   - MMR: maximal marginal relevance re-ranking for diversity
//
// All strategies apply metadata predicates during candidate selection so
// heavy filtering never starves the result count, and every result carries
// enriched metadata (relevance score, retrieval timestamp, original query).
package search
