package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/texcontext-mcp/internal/retriever"
)

func taskNames() []string {
	out := make([]string, len(retriever.Tasks))
	for i, t := range retriever.Tasks {
		out[i] = string(t)
	}
	return out
}

// requestProperties are the cursor arguments shared by assemble_context and complete
func requestProperties() map[string]interface{} {
	return map[string]interface{}{
		"file_path": map[string]interface{}{
			"type":        "string",
			"description": "Document path relative to the project root. Defaults to the active file",
		},
		"content": map[string]interface{}{
			"type":        "string",
			"description": "Current buffer content. Defaults to the file as scanned from the project",
		},
		"cursor": map[string]interface{}{
			"type":        "integer",
			"description": "Cursor position as a byte offset into content",
			"minimum":     0,
		},
		"task": map[string]interface{}{
			"type":        "string",
			"description": "What the context is for",
			"enum":        taskNames(),
			"default":     string(retriever.TaskCompletion),
		},
		"instruction": map[string]interface{}{
			"type":        "string",
			"description": "Free-text user instruction; also used as the semantic query",
		},
	}
}

// assembleContextTool returns the tool definition for assemble_context
func assembleContextTool() mcp.Tool {
	props := requestProperties()
	props["format"] = map[string]interface{}{
		"type":        "string",
		"description": "sections returns each context section, prompt returns the rendered prompt",
		"enum":        []string{formatSections, formatPrompt},
		"default":     formatSections,
	}
	return mcp.Tool{
		Name:        "assemble_context",
		Description: "Assemble budget-fitted LaTeX writing context around a cursor",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
		},
	}
}

// completeTool returns the tool definition for complete
func completeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "complete",
		Description: "Generate text at the cursor using the assembled context",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: requestProperties(),
		},
	}
}

// fileChangedTool returns the tool definition for file_changed
func fileChangedTool() mcp.Tool {
	return mcp.Tool{
		Name:        "file_changed",
		Description: "Report that a document changed so cached context is refreshed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Document path relative to the project root",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "New content. When omitted the file is re-read from the project",
				},
			},
			Required: []string{"path"},
		},
	}
}

// setCursorTool returns the tool definition for set_cursor
func setCursorTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_cursor",
		Description: "Record the active document and cursor position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Document path relative to the project root",
				},
				"cursor": map[string]interface{}{
					"type":        "integer",
					"description": "Cursor position as a byte offset",
					"minimum":     0,
				},
			},
			Required: []string{"path"},
		},
	}
}

// invalidateTool returns the tool definition for invalidate
func invalidateTool() mcp.Tool {
	return mcp.Tool{
		Name:        "invalidate",
		Description: "Drop every cached context, index and project scan",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report project, index and cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
