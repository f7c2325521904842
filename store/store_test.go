package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/index"
)

func sampleIndex(t *testing.T) *index.Index {
	t.Helper()

	ix, err := index.Restore(
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.5, 0.5, 0.5}},
		[]core.Document{
			{Id: 1, Content: "the supreme law", Metadata: core.Metadata{core.MetaCategory: "constitution"}},
			{Id: 2, Content: "চুক্তি আইন", Metadata: core.Metadata{core.MetaCategory: "acts", core.MetaLanguage: "bn"}},
			{Id: 3, Content: "the appeal is allowed", Metadata: core.Metadata{core.MetaCategory: "court_judgments"}},
		},
		[]core.Metadata{
			{core.MetaCategory: "constitution"},
			{core.MetaCategory: "acts", core.MetaLanguage: "bn"},
			{core.MetaCategory: "court_judgments"},
		},
	)
	require.NoError(t, err)
	return ix
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	original := sampleIndex(t)
	require.NoError(t, s.Save(original))

	// All four artifacts present.
	for _, name := range []string{"vectors.mus", "documents.mus", "metadata.json", "embeddings.mat"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, original.Len(), loaded.Len())
	assert.Equal(t, original.Dimension(), loaded.Dimension())
	assert.Equal(t, original.Stats(), loaded.Stats())

	want, err := original.Search([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	got, err := loaded.Search([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Document, got[i].Document)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
	}
}

func TestLoadColdStart(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ix, err := s.Load()
	assert.NoError(t, err)
	assert.Nil(t, ix)
}

func TestLoadPartialArtifactsIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleIndex(t)))

	require.NoError(t, os.Remove(filepath.Join(dir, "documents.mus")))

	_, err = s.Load()
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestLoadTamperedArtifactIsCorrupt(t *testing.T) {
	t.Run("garbage vectors", func(t *testing.T) {
		dir := t.TempDir()
		s, err := New(dir)
		require.NoError(t, err)
		require.NoError(t, s.Save(sampleIndex(t)))

		require.NoError(t, os.WriteFile(filepath.Join(dir, "vectors.mus"), []byte{0xff, 0xff, 0xff}, 0644))

		_, err = s.Load()
		assert.ErrorIs(t, err, ErrCorruptState)
	})

	t.Run("metadata length mismatch", func(t *testing.T) {
		dir := t.TempDir()
		s, err := New(dir)
		require.NoError(t, err)
		require.NoError(t, s.Save(sampleIndex(t)))

		require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(`[{"category":"acts"}]`), 0644))

		_, err = s.Load()
		assert.ErrorIs(t, err, ErrCorruptState)
	})

	t.Run("truncated matrix", func(t *testing.T) {
		dir := t.TempDir()
		s, err := New(dir)
		require.NoError(t, err)
		require.NoError(t, s.Save(sampleIndex(t)))

		path := filepath.Join(dir, "embeddings.mat")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data[:len(data)-4], 0644))

		_, err = s.Load()
		assert.ErrorIs(t, err, ErrCorruptState)
	})
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(sampleIndex(t)))

	grown := sampleIndex(t)
	require.NoError(t, grown.Add(
		[][]float32{{0, 0, 1}},
		[]core.Document{{Id: 4, Content: "ordinance text", Metadata: core.Metadata{core.MetaCategory: "ordinances"}}},
		[]core.Metadata{{core.MetaCategory: "ordinances"}},
	))
	require.NoError(t, s.Save(grown))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
}

func TestSaveNilIndex(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Save(nil))
}

func TestNewEmptyDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestMatrixRoundTrip(t *testing.T) {
	vectors := [][]float32{{1.5, -2.5}, {0.25, 0.75}}
	decoded, err := decodeMatrix(encodeMatrix(vectors))
	require.NoError(t, err)
	assert.Equal(t, vectors, decoded)
}

func TestMatrixEmpty(t *testing.T) {
	decoded, err := decodeMatrix(encodeMatrix(nil))
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
