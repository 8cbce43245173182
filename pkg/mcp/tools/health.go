package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// EnginePinger checks that the query engine answers.
type EnginePinger interface {
	Ping(ctx context.Context) error
}

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Engine  string `json:"engine"`
	Error   string `json:"error,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server version and whether the query engine is reachable.
func RegisterHealthTool(s *server.MCPServer, version string, engine EnginePinger) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and query engine reachability"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version, Engine: "ok"}

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := engine.Ping(pingCtx); err != nil {
			result.Status = "degraded"
			result.Engine = "unavailable"
			result.Error = err.Error()
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
