package openapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/miadp/fmrgate/internal/model"
)

const (
	tagIntegration = "FMR Watch Integration"
	tagHealth      = "Health & Status"

	securitySchemeName = "ApiKeyAuth"
)

// Options controls what the generated document advertises.
type Options struct {
	// BaseURL is listed as the first server. Empty means the local default.
	BaseURL string
	// APIKeyHeader names the header that carries the key.
	APIKeyHeader string
	// Version is the API version string.
	Version string
}

// Generate builds the OpenAPI 3.0 document describing the HTTP API. The
// document is static apart from the options.
func Generate(opts Options) *openapi3.T {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8080"
	}
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = "X-API-Key"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "MIADP Integration to FMR Watch API",
			Version: opts.Version,
			Description: "Key-based access to MIADP subproject records for the FMR Watch integration. " +
				"Protected endpoints require the `" + opts.APIKeyHeader + "` header.",
		},
		Servers: openapi3.Servers{
			{URL: opts.BaseURL},
		},
		Tags: openapi3.Tags{
			{Name: tagIntegration, Description: "Endpoints specific to MIADP and FMR Watch data exchange"},
			{Name: tagHealth, Description: "Basic health checks and diagnostics"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes[securitySchemeName] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "apiKey",
			In:          "header",
			Name:        opts.APIKeyHeader,
			Description: "API key issued by MIS MIADP.",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{securitySchemeName: {}},
	}

	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["Subproject"] = structSchema(model.Subproject{}, subprojectDescriptions)

	doc.Paths = openapi3.NewPaths()
	doc.Paths.Set("/api/v1/subprojects", &openapi3.PathItem{Get: listSubprojectsOperation()})
	doc.Paths.Set("/api/v1/miadp-fmr", &openapi3.PathItem{Get: helloOperation()})
	doc.Paths.Set("/api/v1/seed", &openapi3.PathItem{Get: seedOperation()})
	doc.Paths.Set("/healthz", &openapi3.PathItem{Get: probeOperation("healthz", "Liveness probe")})
	doc.Paths.Set("/readyz", &openapi3.PathItem{Get: probeOperation("readyz", "Readiness probe (checks the database)")})

	return doc
}

// Write encodes doc to w as indented JSON, or as YAML when format is
// "yaml" or "yml".
func Write(w io.Writer, doc *openapi3.T, format string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal openapi document: %w", err)
	}

	switch format {
	case "", "json":
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml", "yml":
		out, err := jsonToYAML(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

// jsonToYAML re-encodes a JSON document as block-style YAML, keeping the
// key order of the input.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode openapi json: %w", err)
	}
	blockStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("encode openapi yaml: %w", err)
	}
	return out, nil
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	if n.Kind == yaml.ScalarNode {
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

var subprojectDescriptions = map[string]string{
	"code":            "Subproject ID, the natural key of the registry.",
	"target_length":   "Planned length in unit_of_measure, exact decimal.",
	"total_budget":    "Total budget in PHP, exact decimal.",
	"approved_budget": "Approved budget in PHP, exact decimal.",
	"year_funded":     "Funding year.",
	"duration":        "Planned duration in calendar days.",
	"created_at":      "When the record was first imported.",
	"updated_at":      "When the record was last imported.",
}

func listSubprojectsOperation() *openapi3.Operation {
	data := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef("#/components/schemas/Subproject", nil),
		},
	}
	return &openapi3.Operation{
		Tags:        []string{tagIntegration},
		Summary:     "List subprojects",
		Description: "Returns every imported subproject, most recently created first.",
		OperationID: "listSubprojects",
		Responses:   newResponses(http.StatusOK, "Subproject list", listEnvelope(data), true),
	}
}

func helloOperation() *openapi3.Operation {
	body := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"message":   stringProp("", "Hello from protected API!"),
				"timestamp": stringProp("date-time", nil),
			},
		},
	}
	return &openapi3.Operation{
		Tags:        []string{tagIntegration},
		Summary:     "FMR Watch hello endpoint",
		Description: "Protected test endpoint. Returns a greeting with the current server time.",
		OperationID: "hello",
		Responses:   newResponses(http.StatusOK, "Greeting", body, true),
	}
}

func seedOperation() *openapi3.Operation {
	body := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"message": stringProp("", "Please contact MIS MIADP to request a new API Key."),
			},
		},
	}
	return &openapi3.Operation{
		Tags:        []string{tagIntegration},
		Summary:     "API key request notice",
		Description: "Keys are issued out of band. This endpoint only explains how to get one.",
		OperationID: "seed",
		Security:    &openapi3.SecurityRequirements{},
		Responses:   newResponses(http.StatusOK, "Notice", body, false),
	}
}

func probeOperation(id, summary string) *openapi3.Operation {
	body := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status": stringProp("", "ok"),
			},
		},
	}
	responses := newResponses(http.StatusOK, summary, body, false)
	unavailable := "Not ready"
	responses.Set(strconv.Itoa(http.StatusServiceUnavailable), &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unavailable,
			Content:     openapi3.NewContentWithJSONSchemaRef(body),
		},
	})
	return &openapi3.Operation{
		Tags:        []string{tagHealth},
		Summary:     summary,
		OperationID: id,
		Security:    &openapi3.SecurityRequirements{},
		Responses:   responses,
	}
}

type errorStatus struct {
	code int
	desc string
}

// newResponses builds the success response plus the standard error
// responses. Protected operations also document 401 and 403.
func newResponses(status int, description string, schema *openapi3.SchemaRef, protected bool) *openapi3.Responses {
	successDesc := description
	responses := openapi3.NewResponses(openapi3.WithStatus(status, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}))

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	errs := []errorStatus{{http.StatusInternalServerError, "Internal server error"}}
	if protected {
		errs = append(errs,
			errorStatus{http.StatusUnauthorized, "Missing or invalid API key"},
			errorStatus{http.StatusForbidden, "API key is deactivated"},
		)
	}
	for _, e := range errs {
		desc := e.desc
		responses.Set(strconv.Itoa(e.code), &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

// listEnvelope wraps data in the envelope shared by list endpoints.
func listEnvelope(data *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"success", "count", "timestamp", "data"},
			Properties: openapi3.Schemas{
				"success":   {Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
				"count":     {Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
				"timestamp": stringProp("date-time", nil),
				"data":      data,
			},
		},
	}
}

func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:     &openapi3.Types{"object"},
						Required: []string{"code", "message"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"kind":    stringProp("", "InvalidCredential"),
							"message": stringProp("", nil),
						},
					},
				},
			},
		},
	}
}

func stringProp(format string, example any) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:    &openapi3.Types{"string"},
			Format:  format,
			Example: example,
		},
	}
}
