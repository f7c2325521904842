package lexindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lexindex/ai/mock"
	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
	"github.com/poiesic/lexindex/search"
)

func corpus() []core.Document {
	return []core.Document{
		{Content: "all citizens are equal before law and are entitled to equal protection of law", Metadata: core.Metadata{
			core.MetaSource: "constitution.txt", core.MetaCategory: "constitution", core.MetaLanguage: "en", core.MetaChunkIndex: "0",
		}},
		{Content: "agreements enforceable by law are contracts", Metadata: core.Metadata{
			core.MetaSource: "contract_act.txt", core.MetaCategory: "acts", core.MetaLanguage: "en", core.MetaChunkIndex: "0",
		}},
		{Content: "সকল নাগরিক আইনের দৃষ্টিতে সমান", Metadata: core.Metadata{
			core.MetaSource: "constitution_bn.txt", core.MetaCategory: "constitution", core.MetaLanguage: "bn", core.MetaChunkIndex: "1",
		}},
	}
}

func newTestEngine(t *testing.T, dataDir string) *Engine {
	t.Helper()

	e, err := New(dataDir,
		WithProvider(mock.NewMockProvider()),
		WithSearchOptions(search.WithScoreThreshold(-1)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineColdStart(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	_, err := e.Query(context.Background(), "equal protection", 5, search.StrategyHybrid, nil)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)

	_, err = e.Stats()
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
}

func TestEngineBuildAndQuery(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	stats, err := e.BuildIndex(context.Background(), corpus())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, 3, stats.TotalVectors)
	assert.Equal(t, 384, stats.Dimension)
	assert.Equal(t, 2, stats.Categories["constitution"])
	assert.Equal(t, 1, stats.Categories["acts"])
	assert.Equal(t, 1, stats.Languages["bn"])

	for _, strategy := range []search.Strategy{
		search.StrategySemantic, search.StrategyLexical, search.StrategyHybrid, search.StrategyMMR,
	} {
		results, err := e.Query(context.Background(), "contracts law", 2, strategy, nil)
		require.NoError(t, err, strategy.String())
		assert.NotEmpty(t, results, strategy.String())
	}
}

func TestEngineBuildEmpty(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	_, err := e.BuildIndex(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = e.BuildIndex(context.Background(), []core.Document{{Content: "  "}})
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestEngineQueryWithPredicate(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	_, err := e.BuildIndex(context.Background(), corpus())
	require.NoError(t, err)

	pred := filter.Eq(core.MetaCategory, "acts")
	results, err := e.Query(context.Background(), "law", 5, search.StrategyLexical, pred)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acts", results[0].Document.Metadata[core.MetaCategory])
}

func TestEngineAddDocuments(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	_, err := e.BuildIndex(context.Background(), corpus())
	require.NoError(t, err)

	added, err := e.AddDocuments(context.Background(), []core.Document{
		{Content: "the ordinance regulates imports", Metadata: core.Metadata{
			core.MetaSource: "import_ordinance.txt", core.MetaCategory: "ordinances", core.MetaLanguage: "en",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalDocuments)

	added, err = e.AddDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestEngineAddDocumentsColdStart(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	added, err := e.AddDocuments(context.Background(), corpus()[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestEnginePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := New(dir, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	_, err = first.BuildIndex(context.Background(), corpus())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(dir,
		WithProvider(mock.NewMockProvider()),
		WithSearchOptions(search.WithScoreThreshold(-1)),
	)
	require.NoError(t, err)
	defer second.Close()

	stats, err := second.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)

	results, err := second.Query(context.Background(), "equal protection of law", 2, search.StrategySemantic, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}
