package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/mcp/tools"
	"github.com/ekaya-inc/election-assistant/pkg/services"
)

// Server wraps the mcp-go MCPServer that exposes the assistant to agents.
type Server struct {
	mcp     *server.MCPServer
	version string
	logger  *zap.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	return &Server{
		mcp:     mcpServer,
		version: version,
		logger:  logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterElectionTools registers ask_election_question and health.
func (s *Server) RegisterElectionTools(assistant services.Assistant, engine tools.EnginePinger) {
	tools.RegisterAskTool(s.mcp, &tools.AskToolDeps{Assistant: assistant, Logger: s.logger})
	tools.RegisterHealthTool(s.mcp, s.version, engine)
	s.logger.Info("MCP tools registered", zap.String("tool", tools.AskToolName))
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
