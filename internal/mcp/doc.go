// Package mcp implements the Model Context Protocol (MCP) server for the
// LaTeX writing assistant.
//
// The server exposes these tools to editor integrations and AI clients:
//   - assemble_context: Build budget-fitted context around a cursor
//   - complete: Generate text at the cursor from that context
//   - file_changed: Report an edit so cached context is refreshed
//   - set_cursor: Record the active document and cursor
//   - invalidate: Drop every cache
//   - get_status: Report project, index and cache statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started by the serve command:
//
//	texcontext serve --project-root ./thesis
//
// Logs go to stderr; stdout is reserved for protocol messages.
//
// # Tool: assemble_context
//
//	Request:
//	{
//	  "name": "assemble_context",
//	  "arguments": {
//	    "file_path": "chapters/intro.tex",
//	    "content": "...",
//	    "cursor": 1042,
//	    "task": "completion",
//	    "format": "sections"
//	  }
//	}
//
// Every argument is optional. Without file_path the active file recorded by
// set_cursor is used; without content the scanned copy of the file is used.
// The sections format returns each context section as text together with the
// semantic matches and the units used. The prompt format returns the rendered
// system and user messages.
//
// # Tool: complete
//
// Takes the same arguments as assemble_context, with instruction carrying the
// user's request. The streamed answer is collected into a single text result.
// Backend failures come back as error results with a user-facing message; a
// rate limit has its own message and cancellation returns the partial text.
//
// # Tool: file_changed
//
//	Request:
//	{
//	  "name": "file_changed",
//	  "arguments": {"path": "chapters/intro.tex", "content": "..."}
//	}
//
//	Response:
//	{"path": "chapters/intro.tex", "changed": true, "initial": false, "lines": [12, 13]}
//
// Without content the file is re-read from the project directory. A buffer
// pushed earlier with content takes precedence over the file on disk.
//
// # Error Codes
//
//	-32602: Invalid parameters
//	-32603: Internal error
//	-32001: Unknown task
//	-32002: File could not be re-read
//	-32003: Assistant closed
//	-32004: No generation backend configured
package mcp
