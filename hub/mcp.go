package hub

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes hub state to MCP clients over stdio. Optional;
// enabled with the --mcp flag on orbhub.
type MCPServer struct {
	Server *server.MCPServer
}

func NewMCPServer(coordinator *Coordinator) *MCPServer {
	s := &MCPServer{Server: server.NewMCPServer("orbcomm hub", "1.0.0")}

	listSessions := mcp.NewTool("list_sessions",
		mcp.WithDescription("Get a list of the sessions currently connected to this hub"))
	s.Server.AddTool(listSessions, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions := coordinator.Registry.List()
		infos := make([]SessionInfo, 0, len(sessions))
		for _, session := range sessions {
			infos = append(infos, *session.Info())
		}

		jsonBytes, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: string(jsonBytes),
				},
			}}, nil
	})

	return s
}

func (s *MCPServer) Start() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.ServeStdio(s.Server)
}
