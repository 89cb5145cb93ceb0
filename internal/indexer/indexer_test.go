package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/texcontext-mcp/internal/embedder"
	"github.com/dshills/texcontext-mcp/internal/vectorindex"
	"github.com/dshills/texcontext-mcp/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension int
	failOn    string // texts containing this substring fail
	callCount int
	mu        sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 8}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	resp, err := m.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		if m.failOn != "" && strings.Contains(text, m.failOn) {
			return nil, errors.New("mock embedding failure")
		}
		vec := make([]float32, m.dimension)
		for j := range vec {
			vec[j] = float32((len(text) + j) % 7)
		}
		out[i] = &embedder.Embedding{Vector: vec, Dimension: m.dimension, Provider: "mock", Model: "test-v1"}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func projectFiles() []types.DocumentFile {
	return []types.DocumentFile{
		{Name: "main.tex", Path: "main.tex", Content: "\\section{Introduction}\nSparse attention for long documents."},
		{Name: "method.tex", Path: "method.tex", Content: "\\section{Method}\n\\begin{equation}\na = b\n\\end{equation}"},
		{Name: "empty.tex", Path: "empty.tex", Content: ""},
	}
}

func TestNew(t *testing.T) {
	idx := New(nil, nil, nil)
	require.NotNil(t, idx)
	assert.False(t, idx.Dense())
	assert.Greater(t, idx.workers, 0)

	idx = New(newMockEmbedder(), &Config{Workers: 3}, nil)
	assert.True(t, idx.Dense())
	assert.Equal(t, 3, idx.workers)
}

func TestBuild_Lexical(t *testing.T) {
	idx := New(nil, &Config{Workers: 2}, nil)
	res := idx.Build(context.Background(), projectFiles())

	assert.Equal(t, vectorindex.ModeLexical, res.Index.Mode())
	assert.Equal(t, 3, res.Stats.FilesIndexed)
	assert.Equal(t, 0, res.Stats.FilesFailed)
	assert.Len(t, res.Chunks, 3, "two sections and one equation")
	assert.Equal(t, len(res.Chunks), res.Index.Len())

	// chunks keep file order
	assert.Equal(t, "main.tex", res.Chunks[0].SourceFile)
	assert.Equal(t, "method.tex", res.Chunks[2].SourceFile)
	for _, ch := range res.Chunks {
		assert.False(t, ch.LastModified.IsZero())
	}
}

func TestBuild_Dense(t *testing.T) {
	emb := newMockEmbedder()
	idx := New(emb, nil, nil)
	res := idx.Build(context.Background(), projectFiles())

	assert.Equal(t, vectorindex.ModeDense, res.Index.Mode())
	assert.Equal(t, 8, res.Index.Dimension())
	assert.Equal(t, 2, res.Stats.FilesEmbedded)
	assert.Equal(t, 2, emb.getCallCount(), "one batch per non-empty file")
}

func TestBuild_PerFileEmbeddingFailureIsSkipped(t *testing.T) {
	emb := newMockEmbedder()
	emb.failOn = "equation"
	idx := New(emb, nil, nil)
	res := idx.Build(context.Background(), projectFiles())

	assert.Equal(t, vectorindex.ModeDense, res.Index.Mode())
	assert.Equal(t, 1, res.Stats.FilesEmbedded)
	assert.Equal(t, 1, res.Index.Len(), "only main.tex chunks carry vectors")
	assert.Len(t, res.Chunks, 3, "failed file still contributes chunks for lexical fallback")
	require.Len(t, res.Stats.ErrorMessages, 1)
	assert.Contains(t, res.Stats.ErrorMessages[0], "method.tex")
}

func TestBuild_AllEmbeddingsFailFallsBackToLexical(t *testing.T) {
	emb := newMockEmbedder()
	emb.failOn = "section"
	idx := New(emb, nil, nil)
	res := idx.Build(context.Background(), projectFiles())

	assert.Equal(t, vectorindex.ModeLexical, res.Index.Mode())
	assert.Equal(t, 3, res.Index.Len())
	assert.Equal(t, vectorindex.ModeLexical, res.Stats.Mode)
}

func TestBuild_Empty(t *testing.T) {
	res := New(nil, nil, nil).Build(context.Background(), nil)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, 0, res.Index.Len())
}

func TestBuild_ManyFilesConcurrently(t *testing.T) {
	files := make([]types.DocumentFile, 40)
	for i := range files {
		name := fmt.Sprintf("ch%02d.tex", i)
		files[i] = types.DocumentFile{Name: name, Path: name, Content: fmt.Sprintf("\\chapter{Chapter %d}\ntext %d", i, i)}
	}
	res := New(newMockEmbedder(), &Config{Workers: 4}, nil).Build(context.Background(), files)
	require.Len(t, res.Chunks, 40)
	for i, ch := range res.Chunks {
		assert.Equal(t, files[i].Path, ch.SourceFile)
	}
}

func BenchmarkBuildLexical(b *testing.B) {
	files := make([]types.DocumentFile, 20)
	for i := range files {
		var sb strings.Builder
		for s := 0; s < 20; s++ {
			fmt.Fprintf(&sb, "\\section{Part %d.%d}\nWe discuss topic %d with \\cite{ref%d}.\n", i, s, s%5, s)
		}
		files[i] = types.DocumentFile{Name: fmt.Sprint(i), Path: fmt.Sprint(i), Content: sb.String()}
	}
	idx := New(nil, nil, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Build(context.Background(), files)
	}
}
