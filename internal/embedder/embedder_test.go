package embedder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns deterministic vectors and records batch sizes
type fakeEmbedder struct {
	batches []int
	failAt  int // batch number to fail, -1 never
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	resp, err := f.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (f *fakeEmbedder) GenerateBatch(_ context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if len(f.batches) == f.failAt {
		f.batches = append(f.batches, len(req.Texts))
		return nil, errors.New("boom")
	}
	f.batches = append(f.batches, len(req.Texts))
	out := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = &Embedding{Vector: []float32{float32(len(text)), 1}, Dimension: 2}
	}
	return &BatchEmbeddingResponse{Embeddings: out}, nil
}

func (f *fakeEmbedder) Dimension() int   { return 2 }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake" }
func (f *fakeEmbedder) Close() error     { return nil }

func TestComputeHash(t *testing.T) {
	a := ComputeHash("m", "hello world")
	assert.Len(t, a, 32)
	assert.Equal(t, a, ComputeHash("m", "hello world"), "hash is deterministic")
	assert.NotEqual(t, a, ComputeHash("other", "hello world"), "model is part of the key")
	assert.NotEqual(t, a, ComputeHash("m", "hello world!"))
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     EmbeddingRequest
		wantErr error
	}{
		{name: "valid request", req: EmbeddingRequest{Text: "test text"}},
		{name: "empty text", req: EmbeddingRequest{Text: ""}, wantErr: ErrEmptyText},
		{name: "with model", req: EmbeddingRequest{Text: "test", Model: "custom-model"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateBatchRequest(t *testing.T) {
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)

	err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "index 1")
}

func TestCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := NewCache(3)

		_, ok := cache.Get("nonexistent")
		assert.False(t, ok)

		cache.Set("hash1", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "hash1"})
		got, ok := cache.Get("hash1")
		require.True(t, ok)
		assert.Equal(t, "hash1", got.Hash)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("returns copies", func(t *testing.T) {
		cache := NewCache(3)
		cache.Set("h", &Embedding{Vector: []float32{1, 2}})

		got, _ := cache.Get("h")
		got.Vector[0] = 99

		again, _ := cache.Get("h")
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("hash1", &Embedding{Hash: "hash1"})
		cache.Set("hash2", &Embedding{Hash: "hash2"})
		cache.Set("hash3", &Embedding{Hash: "hash3"})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("hash1")
		assert.False(t, ok, "least recently used entry is evicted")
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("hash1", &Embedding{Hash: "hash1"})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("nil cache is a no-op", func(t *testing.T) {
		var cache *Cache
		cache.Set("h", &Embedding{})
		_, ok := cache.Get("h")
		assert.False(t, ok)
		assert.Equal(t, 0, cache.Size())
	})
}

func TestCachedBatch(t *testing.T) {
	cache := NewCache(10)
	var fetched [][]string
	fetch := func(texts []string) ([]*Embedding, error) {
		fetched = append(fetched, append([]string(nil), texts...))
		out := make([]*Embedding, len(texts))
		for i, text := range texts {
			out[i] = &Embedding{Vector: []float32{float32(len(text))}}
		}
		return out, nil
	}

	first, err := cachedBatch(cache, "m", []string{"a", "bb"}, fetch)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := cachedBatch(cache, "m", []string{"bb", "ccc", "a"}, fetch)
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, float32(2), second[0].Vector[0])
	assert.Equal(t, float32(3), second[1].Vector[0])
	assert.Equal(t, float32(1), second[2].Vector[0])

	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, fetched, "only misses are fetched")
}

func TestEmbedAll(t *testing.T) {
	texts := make([]string, DefaultBatchSize*2+3)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	f := &fakeEmbedder{failAt: -1}
	vectors, err := EmbedAll(context.Background(), f, texts)
	require.NoError(t, err)
	assert.Len(t, vectors, len(texts))
	assert.Equal(t, []int{DefaultBatchSize, DefaultBatchSize, 3}, f.batches)

	f = &fakeEmbedder{failAt: 1}
	_, err = EmbedAll(context.Background(), f, texts)
	assert.Error(t, err)

	_, err = EmbedAll(context.Background(), &fakeEmbedder{failAt: -1}, []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
