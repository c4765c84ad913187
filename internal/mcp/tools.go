package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// registerTools registers the read-only subproject tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("fmr_list_subprojects",
			mcp.WithDescription(
				"List imported MIADP subprojects, most recently created first. "+
					"Optionally narrow by status or by a case-insensitive match on the "+
					"title, location or ancestral domain. Returns the total match count "+
					"and one page of records.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("status",
				mcp.Description("Exact status to match, case-insensitive (e.g. \"Completed\")"),
			),
			mcp.WithString("search",
				mcp.Description("Substring to look for in title, location and ancestral domain"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of records to return (default 50, max 1000)"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of matching records to skip for pagination"),
			),
		),
		s.handleListSubprojects,
	)

	srv.AddTool(
		mcp.NewTool("fmr_get_subproject",
			mcp.WithDescription("Fetch one subproject by its Subproject ID."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("code",
				mcp.Required(),
				mcp.Description("Subproject ID, the natural key of the registry"),
			),
		),
		s.handleGetSubproject,
	)
}

func (s *MCPServer) handleListSubprojects(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	items, err := s.store.ListSubprojects(ctx)
	if err != nil {
		s.logger.Error("mcp: list subprojects failed", "error", err)
		return toolError("Failed to list subprojects: %v", err)
	}

	status := strings.TrimSpace(optionalString(request, "status"))
	search := strings.ToLower(strings.TrimSpace(optionalString(request, "search")))
	limit := clamp(optionalInt(request, "limit", defaultListLimit), 1, maxListLimit)
	offset := clamp(optionalInt(request, "offset", 0), 0, len(items))

	matched := make([]model.Subproject, 0, len(items))
	for _, sp := range items {
		if status != "" && (sp.Status == nil || !strings.EqualFold(*sp.Status, status)) {
			continue
		}
		if search != "" && !matchesSearch(sp, search) {
			continue
		}
		matched = append(matched, sp)
	}

	offset = clamp(offset, 0, len(matched))
	end := clamp(offset+limit, offset, len(matched))

	return successJSON(map[string]interface{}{
		"count":  len(matched),
		"limit":  limit,
		"offset": offset,
		"data":   matched[offset:end],
	})
}

func (s *MCPServer) handleGetSubproject(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	code, err := requireString(request, "code")
	if err != nil {
		return toolError("%v", err)
	}
	code = strings.TrimSpace(code)

	sp, err := s.store.GetSubproject(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return toolError("No subproject with code %q", code)
	}
	if err != nil {
		s.logger.Error("mcp: get subproject failed", "code", code, "error", err)
		return toolError("Failed to fetch subproject %q: %v", code, err)
	}
	return successJSON(sp)
}

func matchesSearch(sp model.Subproject, needle string) bool {
	for _, field := range []*string{sp.Title, sp.Location, sp.AncestralDomain} {
		if field != nil && strings.Contains(strings.ToLower(*field), needle) {
			return true
		}
	}
	return false
}
