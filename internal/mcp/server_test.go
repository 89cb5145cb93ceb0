package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/texcontext-mcp/internal/assistant"
	"github.com/dshills/texcontext-mcp/internal/config"
	"github.com/dshills/texcontext-mcp/internal/generator"
	"github.com/dshills/texcontext-mcp/internal/project"
)

type stubBackend struct {
	fragments []string
	err       error
}

func (b *stubBackend) Stream(_ context.Context, _ generator.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range b.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if b.err != nil {
			yield("", b.err)
		}
	}
}

func (b *stubBackend) Complete(ctx context.Context, req generator.Request) (string, error) {
	return generator.Collect(b.Stream(ctx, req))
}

const thesisTex = "\\documentclass{article}\n\\title{Sparse Attention}\n\\begin{document}\n\\section{Introduction}\nSparse attention reduces cost.\n\\section{Method}\nWe prune heads.\n\\end{document}"

func newTestServer(t *testing.T, backend generator.Backend) (*Server, *project.MemorySource) {
	t.Helper()
	src := project.NewMemorySource()
	src.Put("main.tex", thesisTex)

	cfg := config.Defaults()
	opts := assistant.Options{Config: &cfg, Source: src}
	if backend != nil {
		opts.Backend = backend
	}
	svc, err := assistant.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	s, err := NewServer(svc, nil)
	require.NoError(t, err)
	return s, src
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestAssembleContext_Sections(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	res, err := s.handleAssembleContext(ctx, call("assemble_context", map[string]interface{}{
		"file_path": "main.tex",
		"cursor":    float64(len(thesisTex) - len("\\end{document}")),
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	assert.Equal(t, "main.tex", out["file_path"])
	assert.Equal(t, "completion", out["task"])

	sections, ok := out["sections"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, sections["immediate"], "We prune heads.")
	assert.Contains(t, sections["structural"], "Method")
	assert.Contains(t, sections["project"], "main.tex")
	assert.Greater(t, out["units"], float64(0))
}

func TestAssembleContext_PromptFormat(t *testing.T) {
	s, _ := newTestServer(t, nil)

	res, err := s.handleAssembleContext(context.Background(), call("assemble_context", map[string]interface{}{
		"file_path":   "main.tex",
		"cursor":      float64(40),
		"instruction": "continue the paragraph",
		"format":      "prompt",
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	assert.NotEmpty(t, out["system"])
	assert.Contains(t, out["user"], "continue the paragraph")
}

func TestAssembleContext_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"unknown task", map[string]interface{}{"task": "poetry"}, ErrorCodeUnknownTask},
		{"negative cursor", map[string]interface{}{"cursor": float64(-1)}, ErrorCodeInvalidParams},
		{"bad format", map[string]interface{}{"format": "xml"}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleAssembleContext(ctx, call("assemble_context", tt.args))
			requireCode(t, err, tt.code)
		})
	}

	var req mcp.CallToolRequest
	req.Params.Arguments = "not an object"
	_, err := s.handleAssembleContext(ctx, req)
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestComplete_CollectsFragments(t *testing.T) {
	s, _ := newTestServer(t, &stubBackend{fragments: []string{"Pruning ", "helps."}})

	res, err := s.handleComplete(context.Background(), call("complete", map[string]interface{}{
		"file_path": "main.tex",
		"cursor":    float64(60),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Pruning helps.", resultText(t, res))
}

func TestComplete_RateLimitMessage(t *testing.T) {
	s, _ := newTestServer(t, &stubBackend{fragments: []string{"Prun"}, err: generator.ErrRateLimited})

	res, err := s.handleComplete(context.Background(), call("complete", map[string]interface{}{"file_path": "main.tex"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, generator.UserMessage(generator.ErrRateLimited), resultText(t, res))
}

func TestComplete_NoBackend(t *testing.T) {
	s, _ := newTestServer(t, nil)

	res, err := s.handleComplete(context.Background(), call("complete", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, generator.UserMessage(generator.ErrNotConfigured), resultText(t, res))
}

func TestFileChanged(t *testing.T) {
	s, src := newTestServer(t, nil)
	ctx := context.Background()

	t.Run("missing path", func(t *testing.T) {
		_, err := s.handleFileChanged(ctx, call("file_changed", map[string]interface{}{}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("with content", func(t *testing.T) {
		res, err := s.handleFileChanged(ctx, call("file_changed", map[string]interface{}{
			"path":    "main.tex",
			"content": thesisTex,
		}))
		require.NoError(t, err)
		out := resultJSON(t, res)
		assert.Equal(t, true, out["initial"])

		edited := thesisTex + "\n% note"
		res, err = s.handleFileChanged(ctx, call("file_changed", map[string]interface{}{
			"path":    "main.tex",
			"content": edited,
		}))
		require.NoError(t, err)
		out = resultJSON(t, res)
		assert.Equal(t, true, out["changed"])
		assert.Equal(t, false, out["initial"])
	})

	t.Run("re-read from source", func(t *testing.T) {
		src.Put("notes.tex", "\\section{Notes}")
		res, err := s.handleFileChanged(ctx, call("file_changed", map[string]interface{}{"path": "notes.tex"}))
		require.NoError(t, err)
		assert.Equal(t, "notes.tex", resultJSON(t, res)["path"])
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := s.handleFileChanged(ctx, call("file_changed", map[string]interface{}{"path": "missing.tex"}))
		requireCode(t, err, ErrorCodeFileNotFound)
	})
}

func TestSetCursor_SelectsActiveFile(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	_, err := s.handleSetCursor(ctx, call("set_cursor", map[string]interface{}{
		"path":   "main.tex",
		"cursor": float64(10),
	}))
	require.NoError(t, err)

	res, err := s.handleAssembleContext(ctx, call("assemble_context", nil))
	require.NoError(t, err)
	assert.Equal(t, "main.tex", resultJSON(t, res)["file_path"])

	_, err = s.handleSetCursor(ctx, call("set_cursor", map[string]interface{}{"path": ""}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestGetStatusAndInvalidate(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	_, err := s.handleAssembleContext(ctx, call("assemble_context", map[string]interface{}{"file_path": "main.tex"}))
	require.NoError(t, err)

	res, err := s.handleGetStatus(ctx, call("get_status", nil))
	require.NoError(t, err)
	out := resultJSON(t, res)

	proj, ok := out["project"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), proj["files"])
	assert.Equal(t, "main.tex", proj["main_document"])

	qc, ok := out["query_cache"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), qc["entries"])

	_, err = s.handleInvalidate(ctx, call("invalidate", nil))
	require.NoError(t, err)

	res, err = s.handleGetStatus(ctx, call("get_status", nil))
	require.NoError(t, err)
	qc = resultJSON(t, res)["query_cache"].(map[string]interface{})
	assert.Equal(t, float64(0), qc["entries"])
}

func TestClosedService(t *testing.T) {
	s, _ := newTestServer(t, nil)
	require.NoError(t, s.svc.Close())

	_, err := s.handleAssembleContext(context.Background(), call("assemble_context", map[string]interface{}{"file_path": "main.tex"}))
	requireCode(t, err, ErrorCodeServiceClosed)
}
