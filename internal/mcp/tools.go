package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/texcontext-mcp/internal/assistant"
	"github.com/dshills/texcontext-mcp/internal/generator"
	"github.com/dshills/texcontext-mcp/internal/retriever"
	"github.com/dshills/texcontext-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeUnknownTask   = -32001 // Task is not one of the known tasks
	ErrorCodeFileNotFound  = -32002 // File could not be read from the project
	ErrorCodeServiceClosed = -32003 // The assistant has shut down
	ErrorCodeNotConfigured = -32004 // No generation backend configured
)

const (
	formatSections = "sections"
	formatPrompt   = "prompt"
)

// handleAssembleContext handles the assemble_context tool invocation
func (s *Server) handleAssembleContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	req, err := assistantRequest(args)
	if err != nil {
		return nil, err
	}

	format := getStringDefault(args, "format", formatSections)
	if format != formatSections && format != formatPrompt {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":   "format",
			"value":   format,
			"allowed": []string{formatSections, formatPrompt},
		})
	}

	if format == formatPrompt {
		p, c, err := s.svc.Prompt(ctx, req)
		if err != nil {
			return nil, serviceError(err)
		}
		response := map[string]interface{}{
			"system": p.System,
			"user":   p.User,
		}
		if c != nil {
			response["file_path"] = c.FilePath
			response["units"] = s.svc.Budget().Size(c.Bundle)
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	c, err := s.svc.AssembleContext(ctx, req)
	if err != nil {
		return nil, serviceError(err)
	}
	return mcp.NewToolResultText(formatJSON(s.contextResponse(c))), nil
}

// handleComplete handles the complete tool invocation. Fragments are
// collected into one result; a cancelled request returns what arrived.
func (s *Server) handleComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	req, err := assistantRequest(args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var sb strings.Builder
	for text, err := range s.svc.Complete(ctx, req) {
		if err != nil {
			if errors.Is(err, retriever.ErrUnknownTask) || errors.Is(err, assistant.ErrClosed) {
				return nil, serviceError(err)
			}
			s.logger.Warn("completion failed", "file", req.FilePath, "error", err)
			return mcp.NewToolResultError(generator.UserMessage(err)), nil
		}
		sb.WriteString(text)
	}
	if ctx.Err() != nil {
		s.logger.Debug("completion cancelled", "file", req.FilePath, "chars", sb.Len())
	} else {
		s.logger.Debug("completion finished", "file", req.FilePath, "chars", sb.Len(), "duration", time.Since(start))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handleFileChanged handles the file_changed tool invocation
func (s *Server) handleFileChanged(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	content, hasContent := args["content"].(string)
	if hasContent {
		summary := s.svc.ContentChanged(path, content)
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"path":    summary.Path,
			"changed": summary.Changed(),
			"initial": summary.Initial,
			"lines":   summary.Lines(),
		})), nil
	}

	summary, err := s.svc.RefreshFile(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeFileNotFound, "failed to re-read file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"path":    summary.Path,
		"changed": summary.Changed(),
		"initial": summary.Initial,
		"lines":   summary.Lines(),
	})), nil
}

// handleSetCursor handles the set_cursor tool invocation
func (s *Server) handleSetCursor(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	cursor := getIntDefault(args, "cursor", 0)
	if cursor < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "cursor must not be negative", map[string]interface{}{
			"param": "cursor",
			"value": cursor,
		})
	}

	s.svc.SetCursor(path, cursor)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"path":   path,
		"cursor": cursor,
	})), nil
}

// handleInvalidate handles the invalidate tool invocation
func (s *Server) handleInvalidate(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.Invalidate()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"invalidated": true})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.svc.Status(ctx)

	index := map[string]interface{}{
		"mode":            st.IndexMode,
		"chunks":          st.IndexChunks,
		"builds":          st.IndexBuilds,
		"lexical_queries": st.LexicalQueries,
	}
	if !st.IndexBuiltAt.IsZero() {
		index["built_at"] = st.IndexBuiltAt.Format(time.RFC3339)
	}
	if n := len(st.IndexFailures); n > 0 {
		if n > 5 {
			index["errors"] = st.IndexFailures[:5]
			index["error_count"] = n
		} else {
			index["errors"] = st.IndexFailures
		}
	}

	response := map[string]interface{}{
		"project": map[string]interface{}{
			"files":         st.Files,
			"main_document": st.MainDocument,
			"fingerprint":   st.Fingerprint,
			"scans":         st.Scans,
			"scan_failures": st.ScanFailures,
		},
		"index": index,
		"query_cache": map[string]interface{}{
			"entries":       st.QueryCache.Entries,
			"hits":          st.QueryCache.Hits,
			"fast_hits":     st.QueryCache.FastHits,
			"misses":        st.QueryCache.Misses,
			"builds":        st.QueryCache.Builds,
			"evictions":     st.QueryCache.Evictions,
			"invalidations": st.QueryCache.Invalidations,
		},
		"backends": map[string]interface{}{
			"embedder":   st.Embedder,
			"completion": st.Completion,
		},
		"budget": map[string]interface{}{
			"max_units":      st.Budget.MaxUnits,
			"chars_per_unit": st.Budget.CharsPerUnit,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// contextResponse renders an assembled context for the client
func (s *Server) contextResponse(c *types.Context) map[string]interface{} {
	matches := make([]map[string]interface{}, 0, len(c.Bundle.Semantic))
	for _, m := range c.Bundle.Semantic {
		matches = append(matches, map[string]interface{}{
			"id":    m.Chunk.ID,
			"kind":  string(m.Chunk.Kind),
			"file":  m.Chunk.SourceFile,
			"line":  m.Chunk.StartLine + 1,
			"score": fmt.Sprintf("%.3f", m.Score),
		})
	}
	return map[string]interface{}{
		"file_path":    c.FilePath,
		"cursor":       c.CursorPosition,
		"task":         c.Task,
		"query":        c.Query,
		"units":        s.svc.Budget().Size(c.Bundle),
		"sections":     c.Bundle.Sections(),
		"matches":      matches,
		"source_files": c.SourceFiles(),
	}
}

// Helper functions

// arguments returns the call's argument object. Tools without parameters
// may be called with no arguments at all.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// assistantRequest reads the shared cursor arguments
func assistantRequest(args map[string]interface{}) (assistant.Request, error) {
	req := assistant.Request{
		FilePath:    getStringDefault(args, "file_path", ""),
		Content:     getStringDefault(args, "content", ""),
		Cursor:      getIntDefault(args, "cursor", 0),
		Task:        getStringDefault(args, "task", ""),
		Instruction: getStringDefault(args, "instruction", ""),
	}
	if req.Cursor < 0 {
		return req, newMCPError(ErrorCodeInvalidParams, "cursor must not be negative", map[string]interface{}{
			"param": "cursor",
			"value": req.Cursor,
		})
	}
	if _, err := retriever.ParseTask(req.Task); err != nil {
		return req, serviceError(err)
	}
	return req, nil
}

// serviceError maps assistant errors onto MCP error codes
func serviceError(err error) error {
	switch {
	case errors.Is(err, retriever.ErrUnknownTask):
		return newMCPError(ErrorCodeUnknownTask, "unknown task", map[string]interface{}{
			"param":   "task",
			"reason":  err.Error(),
			"allowed": taskNames(),
		})
	case errors.Is(err, assistant.ErrClosed):
		return newMCPError(ErrorCodeServiceClosed, "assistant is closed", nil)
	case errors.Is(err, generator.ErrNotConfigured):
		return newMCPError(ErrorCodeNotConfigured, "no generation backend configured", nil)
	default:
		return newMCPError(ErrorCodeInternalError, "request failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// the framework encodes returned errors
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
