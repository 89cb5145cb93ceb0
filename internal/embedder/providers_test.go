package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  2 * time.Second,
		Multiplier:      2,
	}
}

// embeddingServer answers OpenAI/Jina style embedding requests. The first
// failures requests get failStatus.
func embeddingServer(t *testing.T, failures int32, failStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "embeddings"))

		if n <= failures {
			w.WriteHeader(failStatus)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		data := make([]map[string]interface{}, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(text)), 0.5, 0.25},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestJinaProvider(t *testing.T) {
	t.Run("batch embedding", func(t *testing.T) {
		server, calls := embeddingServer(t, 0, 0)
		p, err := NewJinaProvider("test-key", server.URL+"/v1/embeddings", "", NewCache(10))
		require.NoError(t, err)
		defer p.Close()

		resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bbb"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, float32(1), resp.Embeddings[0].Vector[0])
		assert.Equal(t, float32(3), resp.Embeddings[1].Vector[0])
		assert.Equal(t, ProviderJina, resp.Provider)
		assert.Equal(t, int32(1), calls.Load())

		// second request is served from cache
		emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "bbb"})
		require.NoError(t, err)
		assert.Equal(t, float32(3), emb.Vector[0])
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries rate limits", func(t *testing.T) {
		server, calls := embeddingServer(t, 2, http.StatusTooManyRequests)
		p, err := NewJinaProvider("test-key", server.URL, "", nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		server, calls := embeddingServer(t, 5, http.StatusBadRequest)
		p, err := NewJinaProvider("test-key", server.URL, "", nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("validation errors", func(t *testing.T) {
		p, err := NewJinaProvider("test-key", "", "", nil)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		assert.ErrorIs(t, err, ErrEmptyText)

		_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{})
		assert.ErrorIs(t, err, ErrInvalidInput)

		large := make([]string, MaxBatchSize+1)
		for i := range large {
			large[i] = "text"
		}
		_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: large})
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewJinaProvider("", "", "", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("batch embedding", func(t *testing.T) {
		server, calls := embeddingServer(t, 0, 0)
		p, err := NewOpenAIProvider("test-key", server.URL+"/", "", NewCache(10))
		require.NoError(t, err)

		resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"ab", "abcd"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, float32(2), resp.Embeddings[0].Vector[0])
		assert.Equal(t, float32(4), resp.Embeddings[1].Vector[0])
		assert.Equal(t, 3, resp.Embeddings[0].Dimension)
		assert.Equal(t, DefaultOpenAIModel, resp.Model)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries rate limits", func(t *testing.T) {
		server, calls := embeddingServer(t, 1, http.StatusTooManyRequests)
		p, err := NewOpenAIProvider("test-key", server.URL+"/", "", nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("metadata", func(t *testing.T) {
		p, err := NewOpenAIProvider("test-key", "", "", nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, p.Provider())
		assert.Equal(t, OpenAIDimension, p.Dimension())
		assert.Equal(t, DefaultOpenAIModel, p.Model())
		assert.NoError(t, p.Close())
	})
}

func TestContextCancellation(t *testing.T) {
	server, _ := embeddingServer(t, 100, http.StatusServiceUnavailable)
	p, err := NewJinaProvider("test-key", server.URL, "", nil)
	require.NoError(t, err)
	p.retry = RetryConfig{InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second, MaxElapsedTime: time.Minute, Multiplier: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
