package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lexindex/ai/mock"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetOrCompute(t *testing.T) {
	t.Run("computes on miss and caches", func(t *testing.T) {
		c := openTestCache(t)
		calls := 0
		compute := func(ctx context.Context) ([]float32, error) {
			calls++
			return []float32{0.1, 0.2, 0.3}, nil
		}

		v1, err := c.GetOrCompute(context.Background(), "model-a", "some text", compute)
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, v1)
		assert.Equal(t, 1, calls)

		v2, err := c.GetOrCompute(context.Background(), "model-a", "some text", compute)
		require.NoError(t, err)
		assert.Equal(t, v1, v2)
		assert.Equal(t, 1, calls, "second request must be served from cache")
	})

	t.Run("different models cache separately", func(t *testing.T) {
		c := openTestCache(t)
		calls := 0
		compute := func(ctx context.Context) ([]float32, error) {
			calls++
			return []float32{float32(calls)}, nil
		}

		_, err := c.GetOrCompute(context.Background(), "model-a", "text", compute)
		require.NoError(t, err)
		_, err = c.GetOrCompute(context.Background(), "model-b", "text", compute)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("compute error is not cached", func(t *testing.T) {
		c := openTestCache(t)
		boom := errors.New("embedding service down")

		_, err := c.GetOrCompute(context.Background(), "m", "t", func(ctx context.Context) ([]float32, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		v, err := c.GetOrCompute(context.Background(), "m", "t", func(ctx context.Context) ([]float32, error) {
			return []float32{1}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []float32{1}, v)
	})

	t.Run("nil compute function", func(t *testing.T) {
		c := openTestCache(t)
		_, err := c.GetOrCompute(context.Background(), "m", "t", nil)
		assert.ErrorIs(t, err, ErrNilCompute)
	})

	t.Run("concurrent requests share one compute", func(t *testing.T) {
		c := openTestCache(t)

		var mu sync.Mutex
		calls := 0
		gate := make(chan struct{})
		compute := func(ctx context.Context) ([]float32, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-gate
			return []float32{0.5}, nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := c.GetOrCompute(context.Background(), "m", "shared", compute)
				assert.NoError(t, err)
				assert.Equal(t, []float32{0.5}, v)
			}()
		}
		close(gate)
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.LessOrEqual(t, calls, 2, "singleflight must collapse concurrent computes")
	})
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put("model", "durable text", []float32{1, 2, 3}))
	require.NoError(t, c.Flush())
	require.NoError(t, c.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok := reopened.Lookup("model", "durable text")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestCacheLen(t *testing.T) {
	c := openTestCache(t)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, c.Put("m", "one", []float32{1}))
	require.NoError(t, c.Put("m", "two", []float32{2}))
	require.NoError(t, c.Put("m", "two", []float32{2.5})) // overwrite, not a new entry

	n, err = c.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("m", "t"), Fingerprint("m", "t"))
	assert.NotEqual(t, Fingerprint("m", "t"), Fingerprint("m", "u"))
	assert.NotEqual(t, Fingerprint("m", "t"), Fingerprint("n", "t"))
	// Model/text boundary must matter.
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}

func TestCachingEmbedder(t *testing.T) {
	t.Run("constructor validation", func(t *testing.T) {
		c := openTestCache(t)
		_, err := NewEmbedder(nil, c, "m")
		assert.ErrorIs(t, err, ErrNilEmbedder)

		_, err = NewEmbedder(mock.NewMockEmbedder(), nil, "m")
		assert.ErrorIs(t, err, ErrNilCache)
	})

	t.Run("EmbedText caches", func(t *testing.T) {
		c := openTestCache(t)
		inner := mock.NewMockEmbedder()
		embedder, err := NewEmbedder(inner, c, "mock")
		require.NoError(t, err)

		v1, err := embedder.EmbedText(context.Background(), "some clause")
		require.NoError(t, err)
		v2, err := embedder.EmbedText(context.Background(), "some clause")
		require.NoError(t, err)

		assert.Equal(t, v1, v2)
		assert.Equal(t, 1, inner.CallCount())
	})

	t.Run("EmbedTexts only computes misses", func(t *testing.T) {
		c := openTestCache(t)
		inner := mock.NewMockEmbedder()
		embedder, err := NewEmbedder(inner, c, "mock")
		require.NoError(t, err)

		_, err = embedder.EmbedText(context.Background(), "cached")
		require.NoError(t, err)

		var batched []string
		inner.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			batched = texts
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = mock.DeterministicVector(texts[i], 384)
			}
			return out, nil
		}

		vectors, err := embedder.EmbedTexts(context.Background(), []string{"cached", "fresh"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, []string{"fresh"}, batched)
		assert.NotNil(t, vectors[0])
		assert.NotNil(t, vectors[1])
	})

	t.Run("fully cached batch skips the service", func(t *testing.T) {
		c := openTestCache(t)
		inner := mock.NewMockEmbedder()
		embedder, err := NewEmbedder(inner, c, "mock")
		require.NoError(t, err)

		_, err = embedder.EmbedTexts(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		callsAfterFirst := inner.CallCount()

		_, err = embedder.EmbedTexts(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, callsAfterFirst, inner.CallCount())
	})

	t.Run("batch length mismatch detected", func(t *testing.T) {
		c := openTestCache(t)
		inner := mock.NewMockEmbedder()
		inner.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1}}, nil // wrong length
		}
		embedder, err := NewEmbedder(inner, c, "mock")
		require.NoError(t, err)

		_, err = embedder.EmbedTexts(context.Background(), []string{"x", "y"})
		assert.ErrorIs(t, err, ErrBatchMismatch)
	})
}
