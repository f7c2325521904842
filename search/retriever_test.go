package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lexindex/ai/mock"
	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
	"github.com/poiesic/lexindex/index"
)

// fixedEmbedder returns an embedder that maps known texts to fixed vectors
// and everything else to a default direction.
func fixedEmbedder(dim int, vectors map[string][]float32) *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	m.Dimension = dim
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		v := make([]float32, dim)
		v[0] = 1
		return v, nil
	}
	return m
}

// testIndex builds a 2-d index with three documents:
//
//	id 1: direction (1,0), constitution, content about equality
//	id 2: direction (0.9,0.1), constitution, near-duplicate of id 1
//	id 3: direction (0,1), acts, content about contracts
func testIndex(t *testing.T) *index.Index {
	t.Helper()

	ix := index.New()
	err := ix.Add(
		[][]float32{{1, 0}, {0.9, 0.1}, {0, 1}},
		[]core.Document{
			{Id: 1, Content: "all citizens are equal before law", Metadata: core.Metadata{core.MetaCategory: "constitution", core.MetaLanguage: "en"}},
			{Id: 2, Content: "citizens are equal before the law", Metadata: core.Metadata{core.MetaCategory: "constitution", core.MetaLanguage: "en"}},
			{Id: 3, Content: "agreements enforceable by law are contracts", Metadata: core.Metadata{core.MetaCategory: "acts", core.MetaLanguage: "en"}},
		},
		[]core.Metadata{
			{core.MetaCategory: "constitution", core.MetaLanguage: "en"},
			{core.MetaCategory: "constitution", core.MetaLanguage: "en"},
			{core.MetaCategory: "acts", core.MetaLanguage: "en"},
		},
	)
	require.NoError(t, err)
	return ix
}

func TestNewRetrieverValidation(t *testing.T) {
	ix := testIndex(t)

	_, err := NewRetriever(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewRetriever(ix, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	r, err := NewRetriever(ix, mock.NewMockEmbedder())
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r, err := NewRetriever(testIndex(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "   ", 5, StrategySemantic, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveUnknownStrategy(t *testing.T) {
	r, err := NewRetriever(testIndex(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "equal protection", 5, Strategy(0), nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRetrieveSemantic(t *testing.T) {
	embedder := fixedEmbedder(2, map[string][]float32{
		"equal citizens": {1, 0},
	})
	r, err := NewRetriever(testIndex(t), embedder, WithAutoDetect(false))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "equal citizens", 2, StrategySemantic, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ID(1), results[0].Document.Id)
	assert.Equal(t, core.ID(2), results[1].Document.Id)
}

func TestRetrieveSemanticThreshold(t *testing.T) {
	embedder := fixedEmbedder(2, map[string][]float32{
		"equal citizens": {1, 0},
	})
	r, err := NewRetriever(testIndex(t), embedder,
		WithAutoDetect(false), WithScoreThreshold(0.95))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "equal citizens", 3, StrategySemantic, nil)
	require.NoError(t, err)
	// Only the exact-direction document clears 0.95.
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(1), results[0].Document.Id)
}

func TestRetrieveLexical(t *testing.T) {
	r, err := NewRetriever(testIndex(t), mock.NewMockEmbedder(), WithAutoDetect(false))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "contracts", 5, StrategyLexical, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(3), results[0].Document.Id)
}

func TestRetrieveLexicalRespectsPredicate(t *testing.T) {
	r, err := NewRetriever(testIndex(t), mock.NewMockEmbedder(), WithAutoDetect(false))
	require.NoError(t, err)

	pred := filter.Eq(core.MetaCategory, "constitution")
	results, err := r.Retrieve(context.Background(), "law", 5, StrategyLexical, pred)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, "constitution", res.Document.Metadata[core.MetaCategory])
	}
}

func TestRetrieveHybrid(t *testing.T) {
	// Semantically the query points at document 1, lexically it matches
	// document 3 ("contracts"). With alpha 0.7 the semantic signal wins.
	embedder := fixedEmbedder(2, map[string][]float32{
		"contracts": {1, 0},
	})
	r, err := NewRetriever(testIndex(t), embedder, WithAutoDetect(false))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "contracts", 2, StrategyHybrid, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ID(1), results[0].Document.Id)

	// With alpha 0 only the lexical signal counts.
	rLex, err := NewRetriever(testIndex(t), embedder, WithAutoDetect(false), WithAlpha(0))
	require.NoError(t, err)
	results, err = rLex.Retrieve(context.Background(), "contracts", 1, StrategyHybrid, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(3), results[0].Document.Id)
}

func TestRetrieveMMR(t *testing.T) {
	embedder := fixedEmbedder(2, map[string][]float32{
		"equal citizens": {1, 0},
	})

	t.Run("high lambda keeps near-duplicate", func(t *testing.T) {
		r, err := NewRetriever(testIndex(t), embedder, WithAutoDetect(false), WithLambda(0.9))
		require.NoError(t, err)

		results, err := r.Retrieve(context.Background(), "equal citizens", 2, StrategyMMR, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, core.ID(1), results[0].Document.Id)
		assert.Equal(t, core.ID(2), results[1].Document.Id)
	})

	t.Run("low lambda diversifies", func(t *testing.T) {
		r, err := NewRetriever(testIndex(t), embedder, WithAutoDetect(false), WithLambda(0.1))
		require.NoError(t, err)

		results, err := r.Retrieve(context.Background(), "equal citizens", 2, StrategyMMR, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, core.ID(1), results[0].Document.Id)
		assert.Equal(t, core.ID(3), results[1].Document.Id)
	})
}

func TestRetrieveDefaultK(t *testing.T) {
	embedder := fixedEmbedder(2, map[string][]float32{})
	r, err := NewRetriever(testIndex(t), embedder, WithAutoDetect(false), WithK(1), WithScoreThreshold(-1))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "anything", 0, StrategySemantic, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetrieveAutoDetect(t *testing.T) {
	embedder := fixedEmbedder(2, map[string][]float32{})

	t.Run("detected category restricts results", func(t *testing.T) {
		r, err := NewRetriever(testIndex(t), embedder, WithScoreThreshold(-1))
		require.NoError(t, err)

		// "act" triggers the acts category; every result must be from it.
		results, err := r.Retrieve(context.Background(), "the contract act", 5, StrategySemantic, nil)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, res := range results {
			assert.Equal(t, "acts", res.Document.Metadata[core.MetaCategory])
		}
	})

	t.Run("caller predicate overrides detected category", func(t *testing.T) {
		r, err := NewRetriever(testIndex(t), embedder, WithScoreThreshold(-1))
		require.NoError(t, err)

		pred := filter.Eq(core.MetaCategory, "constitution")
		results, err := r.Retrieve(context.Background(), "the contract act", 5, StrategySemantic, pred)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, res := range results {
			assert.Equal(t, "constitution", res.Document.Metadata[core.MetaCategory])
		}
	})

	t.Run("disabled detection leaves results unfiltered", func(t *testing.T) {
		r, err := NewRetriever(testIndex(t), embedder, WithAutoDetect(false), WithScoreThreshold(-1))
		require.NoError(t, err)

		results, err := r.Retrieve(context.Background(), "the contract act", 5, StrategySemantic, nil)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})
}

func TestRetrieveEnrichment(t *testing.T) {
	ix := testIndex(t)
	embedder := fixedEmbedder(2, map[string][]float32{
		"equal citizens": {1, 0},
	})
	r, err := NewRetriever(ix, embedder, WithAutoDetect(false))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "equal citizens", 1, StrategySemantic, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	meta := results[0].Document.Metadata
	assert.Contains(t, meta, core.MetaRelevanceScore)
	assert.Contains(t, meta, core.MetaRetrievalTimestamp)
	assert.Equal(t, "equal citizens", meta[core.MetaOriginalQuery])

	// Enrichment happens on copies; the index-owned metadata stays clean.
	for _, doc := range ix.Documents() {
		assert.NotContains(t, doc.Metadata, core.MetaRelevanceScore)
		assert.NotContains(t, doc.Metadata, core.MetaOriginalQuery)
	}
}

func TestEnhanceQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			"english term pulls in related terms",
			"powers of the government",
			"powers of the government সরকার প্রশাসন administration",
		},
		{
			"bengali term pulls in related terms",
			"সংসদ কীভাবে গঠিত হয়",
			"সংসদ কীভাবে গঠিত হয় parliament জাতীয় সংসদ national parliament",
		},
		{
			"matching is case-insensitive",
			"Fundamental Rights of citizens",
			"Fundamental Rights of citizens মৌলিক অধিকার basic rights human rights",
		},
		{
			"expansion is capped at three terms",
			"fundamental rights and the judiciary",
			"fundamental rights and the judiciary মৌলিক অধিকার basic rights human rights",
		},
		{
			"no entity terms leaves the query alone",
			"contract consideration",
			"contract consideration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enhanceQuery(tt.query))
		})
	}
}

func TestRetrieveEnhancesQueryAcrossScripts(t *testing.T) {
	// A Bengali-only document about parliament, queried in English. Without
	// entity expansion the lexical scorer has no token in common with it.
	ix := index.New()
	err := ix.Add(
		[][]float32{{1, 0}},
		[]core.Document{
			{Id: 7, Content: "জাতীয় সংসদ আইন প্রণয়ন করিবে", Metadata: core.Metadata{core.MetaLanguage: "bn"}},
		},
		[]core.Metadata{{core.MetaLanguage: "bn"}},
	)
	require.NoError(t, err)

	r, err := NewRetriever(ix, mock.NewMockEmbedder(), WithAutoDetect(false))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "parliament", 5, StrategyLexical, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(7), results[0].Document.Id)
}

func TestPreprocessQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"collapses whitespace", "equal   protection\tof law", "equal protection of law"},
		{"expands english abbreviation", "powers of the PM", "powers of the Prime Minister"},
		{"expands bengali abbreviation", "সংবিধান কী বলে", "বাংলাদেশের সংবিধান কী বলে"},
		{"plain query unchanged", "contract law", "contract law"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preprocessQuery(tt.query))
		})
	}
}
