package ui

import "embed"

// Static embeds the pages served by the HTTP API.
//
//go:embed static
var Static embed.FS

// DocsPage returns the HTML page that renders the OpenAPI document with
// Swagger UI.
func DocsPage() ([]byte, error) {
	return Static.ReadFile("static/docs.html")
}
