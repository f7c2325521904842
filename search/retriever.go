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
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/lexindex/ai"
	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
	"github.com/poiesic/lexindex/index"
)

const (
	// DefaultK is the result count used when the caller passes k <= 0.
	DefaultK = 5
	// DefaultScoreThreshold is the minimum semantic similarity for pure
	// semantic retrieval.
	DefaultScoreThreshold = 0.7
	// DefaultAlpha is the semantic weight in the hybrid blend.
	DefaultAlpha = 0.7
	// DefaultLambda is the relevance/diversity balance for MMR.
	DefaultLambda = 0.7
)

// Common abbreviations expanded before retrieval.
var abbreviations = map[string]string{
	"বাংলাদেশ": "গণপ্রজাতন্ত্রী বাংলাদেশ",
	"সংবিধান":  "বাংলাদেশের সংবিধান",
	"PM":       "Prime Minister",
	"MP":       "Member of Parliament",
}

// Related legal-entity terms grouped by concept, Bengali and English
// spellings side by side. A query mentioning any term from a group is
// expanded with related terms from the same group.
var legalEntities = []struct {
	concept string
	terms   []string
}{
	{"rights", []string{
		"মৌলিক অধিকার", "fundamental rights", "basic rights",
		"human rights", "constitutional rights",
	}},
	{"government", []string{
		"সরকার", "government", "প্রশাসন", "administration",
		"রাষ্ট্রপতি", "president", "প্রধানমন্ত্রী", "prime minister",
	}},
	{"parliament", []string{
		"সংসদ", "parliament", "জাতীয় সংসদ", "national parliament",
		"আইনসভা", "legislature",
	}},
	{"judiciary", []string{
		"বিচার বিভাগ", "judiciary", "আদালত", "court",
		"বিচারক", "judge", "সুপ্রিম কোর্ট", "supreme court",
	}},
}

// Retriever answers text queries against a vector index using one of the
// closed set of strategies. It owns the query preprocessing, predicate
// auto-detection, and result enrichment shared by all strategies.
type Retriever struct {
	index          *index.Index
	embedder       ai.Embedder
	k              int
	scoreThreshold float32
	alpha          float32
	lambda         float32
	autoDetect     bool
	logger         *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithK sets the default result count for queries that do not specify one.
func WithK(k int) Option {
	return func(r *Retriever) error {
		if k > 0 {
			r.k = k
		}
		return nil
	}
}

// WithScoreThreshold sets the semantic similarity threshold.
func WithScoreThreshold(threshold float32) Option {
	return func(r *Retriever) error {
		r.scoreThreshold = threshold
		return nil
	}
}

// WithAlpha sets the semantic weight in the hybrid blend.
func WithAlpha(alpha float32) Option {
	return func(r *Retriever) error {
		r.alpha = alpha
		return nil
	}
}

// WithLambda sets the MMR relevance/diversity balance.
func WithLambda(lambda float32) Option {
	return func(r *Retriever) error {
		r.lambda = lambda
		return nil
	}
}

// WithAutoDetect enables or disables predicate auto-detection from query text.
// Default is enabled.
func WithAutoDetect(enabled bool) Option {
	return func(r *Retriever) error {
		r.autoDetect = enabled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a retriever over the given index and embedder.
func NewRetriever(ix *index.Index, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if ix == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		index:          ix,
		embedder:       embedder,
		k:              DefaultK,
		scoreThreshold: DefaultScoreThreshold,
		alpha:          DefaultAlpha,
		lambda:         DefaultLambda,
		autoDetect:     true,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve returns up to k documents for the query using the given strategy.
// A blank query is a valid no-op and yields an empty result. Auto-detected
// predicates are merged with the caller's predicate; caller keys win on
// conflict. Result metadata is enriched with the relevance score, retrieval
// timestamp, and original query on copies, never on index-owned maps.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, strategy Strategy, pred filter.Predicate) ([]core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		r.logger.Warn("empty query provided")
		return []core.SearchResult{}, nil
	}
	if k <= 0 {
		k = r.k
	}

	processed := enhanceQuery(preprocessQuery(query))

	if r.autoDetect {
		if detected := filter.Detect(query); detected != nil {
			pred = pred.Merge(detected)
		}
	}

	var (
		results []core.SearchResult
		err     error
	)
	switch strategy {
	case StrategySemantic:
		results, err = r.semanticSearch(ctx, processed, k, pred, true)
	case StrategyLexical:
		results = r.lexicalSearch(processed, k, pred)
	case StrategyHybrid:
		results, err = r.hybridSearch(ctx, processed, k, pred)
	case StrategyMMR:
		results, err = r.mmrSearch(ctx, processed, k, pred)
	default:
		return nil, ErrUnknownStrategy
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved documents",
		"strategy", strategy.String(), "results", len(results))
	return r.enrich(results, query), nil
}

// semanticSearch embeds the query and runs a filtered top-k index search.
// The score threshold only applies to pure semantic retrieval; the hybrid
// and MMR strategies blend or re-rank unthresholded candidates.
func (r *Retriever) semanticSearch(ctx context.Context, query string, k int, pred filter.Predicate, applyThreshold bool) ([]core.SearchResult, error) {
	vec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	opts := make([]index.SearchOption, 0, 2)
	if pred != nil {
		opts = append(opts, index.WithFilter(pred))
	}
	if applyThreshold {
		opts = append(opts, index.WithScoreThreshold(r.scoreThreshold))
	}
	return r.index.Search(vec, k, opts...)
}

// preprocessQuery collapses whitespace and expands common abbreviations.
// Expansion is whole-token so one expansion never re-triggers another.
func preprocessQuery(query string) string {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		if full, ok := abbreviations[tok]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// enhanceQuery appends legal-entity terms related to concepts the query
// already mentions, so a query about "parliament" also reaches documents
// that only use সংসদ. At most one term per group triggers the expansion,
// and at most three related terms are appended to keep the query focused.
func enhanceQuery(query string) string {
	lower := strings.ToLower(query)

	var related []string
	for _, entity := range legalEntities {
		for _, term := range entity.terms {
			if !strings.Contains(lower, strings.ToLower(term)) {
				continue
			}
			for _, other := range entity.terms {
				if !strings.EqualFold(other, term) {
					related = append(related, other)
				}
			}
			break
		}
	}

	if len(related) == 0 {
		return query
	}
	if len(related) > 3 {
		related = related[:3]
	}
	return query + " " + strings.Join(related, " ")
}

// enrich annotates result metadata copies with retrieval context.
func (r *Retriever) enrich(results []core.SearchResult, originalQuery string) []core.SearchResult {
	now := time.Now().UTC().Format(time.RFC3339)
	for i := range results {
		meta := results[i].Document.Metadata.Clone()
		meta[core.MetaRelevanceScore] = strconv.FormatFloat(float64(results[i].Score), 'f', 6, 32)
		meta[core.MetaRetrievalTimestamp] = now
		meta[core.MetaOriginalQuery] = originalQuery
		results[i].Document.Metadata = meta
	}
	return results
}
