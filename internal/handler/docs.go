package handler

import (
	"bytes"
	"net/http"

	"github.com/miadp/fmrgate/internal/openapi"
	"github.com/miadp/fmrgate/internal/ui"
)

// DocsHandler serves the OpenAPI document and the page that renders it.
type DocsHandler struct {
	opts openapi.Options
}

// NewDocsHandler creates a DocsHandler. An empty opts.BaseURL is filled in
// from each request.
func NewDocsHandler(opts openapi.Options) *DocsHandler {
	return &DocsHandler{opts: opts}
}

// ServeSpec returns the OpenAPI document as JSON, or as YAML with
// ?format=yaml.
// GET /api/v1/docs
func (h *DocsHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	opts := h.opts
	if opts.BaseURL == "" {
		opts.BaseURL = requestBaseURL(r)
	}

	format := queryString(r, "format")
	contentType := "application/json"
	switch format {
	case "", "json":
	case "yaml", "yml":
		contentType = "application/yaml"
	default:
		writeError(w, http.StatusBadRequest, "", "Unsupported format "+format+"; use json or yaml")
		return
	}

	var buf bytes.Buffer
	if err := openapi.Write(&buf, openapi.Generate(opts), format); err != nil {
		writeError(w, http.StatusInternalServerError, "", "Failed to render API document")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ServePage returns the HTML page that renders /api/v1/docs.
// GET /docs
func (h *DocsHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	page, err := ui.DocsPage()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "Docs page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}
