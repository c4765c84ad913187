package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	subprojectsURI      = "fmr://subprojects"
	subprojectURIPrefix = "fmr://subprojects/"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			subprojectsURI,
			"MIADP Subprojects",
			mcp.WithResourceDescription(
				"Every imported subproject with its budget, location, schedule and status.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleSubprojectsResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			subprojectURIPrefix+"{code}",
			"MIADP Subproject",
			mcp.WithTemplateDescription("A single subproject by its Subproject ID."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleSubprojectResource,
	)
}

// handleSubprojectsResource returns all subprojects as JSON.
func (s *MCPServer) handleSubprojectsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	items, err := s.store.ListSubprojects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subprojects: %w", err)
	}
	return jsonContents(subprojectsURI, items)
}

// handleSubprojectResource returns one subproject named by the URI.
func (s *MCPServer) handleSubprojectResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	code := strings.TrimPrefix(uri, subprojectURIPrefix)
	if code == "" || code == uri {
		return nil, fmt.Errorf("invalid subproject URI %q: expected %s{code}", uri, subprojectURIPrefix)
	}

	sp, err := s.store.GetSubproject(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("subproject %q: %w", code, err)
	}
	return jsonContents(uri, sp)
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
