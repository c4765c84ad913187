package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/miadp/fmrgate/internal/model"
)

// SubprojectReader is the read side of the record store exposed to MCP
// clients. Nothing here writes.
type SubprojectReader interface {
	ListSubprojects(ctx context.Context) ([]model.Subproject, error)
	GetSubproject(ctx context.Context, code string) (*model.Subproject, error)
}

// MCPServer wraps the mcp-go server with the subproject tools and
// resources, so agents can browse imported records without the REST API.
type MCPServer struct {
	store  SubprojectReader
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all tools and
// resources. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(store SubprojectReader, logger *slog.Logger, version string) *MCPServer {
	s := &MCPServer{
		store:  store,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"MIADP FMR Watch",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// Handler returns the Streamable HTTP transport as an http.Handler so the
// caller can mount it behind the API key gate.
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
