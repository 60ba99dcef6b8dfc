package flat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New("", 3)
	require.NoError(t, err)
	return idx
}

func TestAddSearch_RoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
	))
	assert.Equal(t, 3, idx.Len())

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5, -1)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].EmbeddingID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "c", hits[1].EmbeddingID)
	assert.Equal(t, "b", hits[2].EmbeddingID)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-6)
}

func TestSearch_ThresholdAndTopK(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
	))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5, 0.5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Search(ctx, []float32{1, 0, 0}, 1, -1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].EmbeddingID)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Add(ctx,
		[]string{"first", "second", "third"},
		[][]float32{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}},
	))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 3, 0)
	require.NoError(t, err)
	ids := []string{hits[0].EmbeddingID, hits[1].EmbeddingID, hits[2].EmbeddingID}
	assert.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestSearch_EmptyIndex(t *testing.T) {
	tests := []struct {
		name  string
		query []float32
		topK  int
	}{
		{"valid arguments", []float32{1, 0, 0}, 5},
		{"zero top k", []float32{1, 0, 0}, 0},
		{"wrong dimensions", []float32{1, 0}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := newIndex(t).Search(context.Background(), tt.query, tt.topK, 0)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestSearch_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))

	_, err := idx.Search(ctx, []float32{1, 0}, 5, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = idx.Search(ctx, []float32{1, 0, 0}, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAdd_Rejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		ids     []string
		vectors [][]float32
		want    error
	}{
		{"length mismatch", []string{"x", "y"}, [][]float32{{1, 0, 0}}, domain.ErrInvalidArgument},
		{"wrong dimension", []string{"x"}, [][]float32{{1, 0}}, domain.ErrInvalidArgument},
		{"existing id", []string{"a"}, [][]float32{{1, 0, 0}}, domain.ErrAlreadyExists},
		{"repeated in batch", []string{"x", "x"}, [][]float32{{1, 0, 0}, {0, 1, 0}}, domain.ErrAlreadyExists},
		{"empty id", []string{""}, [][]float32{{1, 0, 0}}, domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newIndex(t)
			require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 0, 1}}))

			err := idx.Add(ctx, tt.ids, tt.vectors)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, idx.Len(), "failed add must not change the index")
		})
	}
}

func TestAdd_LearnsDimensions(t *testing.T) {
	idx, err := New("", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Dimensions())

	require.NoError(t, idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 2}}))
	assert.Equal(t, 2, idx.Dimensions())
}

func TestDelete_NeverReturnedAgain(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0, 0}, {0.8, 0.2, 0}, {0.6, 0.4, 0}},
	))

	ok, err := idx.Delete(ctx, []string{"b", "unknown"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, idx.Len())

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10, -1)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "b", h.EmbeddingID)
	}

	// The freed id may be reused.
	require.NoError(t, idx.Add(ctx, []string{"b"}, [][]float32{{0, 0, 1}}))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))

	require.NoError(t, idx.Clear(ctx))
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 3, idx.Dimensions())
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index", "vectors.idx")

	idx, err := New(path, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0, 0}, {0, 0.5, 0.5}},
	))
	require.NoError(t, idx.Save(ctx))

	loaded, err := New(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, 3, loaded.Dimensions())

	hits, err := loaded.Search(ctx, []float32{0, 1, 1}, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].EmbeddingID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSave_FailureKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.idx")

	idx, err := New(path, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Save(ctx))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	original := replaceFile
	t.Cleanup(func() { replaceFile = original })
	replaceFile = func(string, string) error { return errors.New("disk full") }

	require.NoError(t, idx.Add(ctx, []string{"b"}, [][]float32{{0, 1, 0}}))
	err = idx.Save(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace snapshot")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	loaded, err := New(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	leftovers, err := filepath.Glob(filepath.Join(dir, ".vectors-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	replaceFile = original
	require.NoError(t, idx.Close(), "failed save leaves the index dirty")
	loaded, err = New(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestClose_SavesWhenDirty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.idx")

	idx, err := New(path, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clean index must not write a snapshot")

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Close())

	loaded, err := New(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.idx")

	idx, err := New(path, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Save(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize+3] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = New(path, 3)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)

	require.NoError(t, os.WriteFile(path, []byte("DQ"), 0o600))
	_, err = New(path, 3)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestLoad_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.idx")

	idx, err := New(path, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Save(ctx))

	_, err = New(path, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestConcurrentSearchAndAdd(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	require.NoError(t, idx.Add(ctx, []string{"seed"}, [][]float32{{1, 0, 0}}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 0; n < 100; n++ {
			_ = idx.Add(ctx, []string{string(rune('A' + n%26)) + string(rune('a'+n/26))}, [][]float32{{0, 1, 0}})
		}
	}()

	for n := 0; n < 100; n++ {
		_, err := idx.Search(ctx, []float32{1, 0, 0}, 3, 0)
		require.NoError(t, err)
	}
	<-done
}
