package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/texcontext-mcp/internal/assistant"
)

const (
	// ServerName is the MCP server name
	ServerName = "texcontext-mcp"
	// ServerVersion is the current server version
	ServerVersion = "0.1.0"
)

// Server wraps the MCP server with the writing assistant it exposes
type Server struct {
	mcp    *server.MCPServer
	svc    *assistant.Service
	logger *slog.Logger
}

// NewServer creates a new MCP server over svc
func NewServer(svc *assistant.Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("mcp: assistant service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:    mcpServer,
		svc:    svc,
		logger: logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown. The
// service is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.svc.Close() }()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(s.mcp)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(assembleContextTool(), s.handleAssembleContext)
	s.mcp.AddTool(completeTool(), s.handleComplete)
	s.mcp.AddTool(fileChangedTool(), s.handleFileChanged)
	s.mcp.AddTool(setCursorTool(), s.handleSetCursor)
	s.mcp.AddTool(invalidateTool(), s.handleInvalidate)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
