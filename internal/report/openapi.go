package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/apiscout/apiscout/internal/analyzer"
)

// OpenAPISpec is a minimal OpenAPI 3.0 document.
type OpenAPISpec struct {
	OpenAPI    string              `json:"openapi"`
	Info       SpecInfo            `json:"info"`
	Servers    []SpecServer        `json:"servers"`
	Paths      map[string]PathItem `json:"paths"`
	Components *Components         `json:"components,omitempty"`
}

// SpecInfo is the OpenAPI info block.
type SpecInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// SpecServer is an OpenAPI server entry.
type SpecServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// PathItem maps lowercase HTTP methods to operations.
type PathItem map[string]*Operation

// Operation describes one method on one path.
type Operation struct {
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	OperationID string              `json:"operationId"`
	Tags        []string            `json:"tags"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter is a path or query parameter.
type Parameter struct {
	Name        string      `json:"name"`
	In          string      `json:"in"`
	Required    bool        `json:"required"`
	Schema      ParamSchema `json:"schema"`
	Description string      `json:"description,omitempty"`
}

// ParamSchema holds a parameter's inferred type.
type ParamSchema struct {
	Type string `json:"type"`
}

// RequestBody references a named schema.
type RequestBody struct {
	Description string               `json:"description"`
	Required    bool                 `json:"required"`
	Content     map[string]MediaType `json:"content"`
}

// MediaType wraps a schema reference.
type MediaType struct {
	Schema SchemaRef `json:"schema"`
}

// SchemaRef points into components/schemas.
type SchemaRef struct {
	Ref string `json:"$ref"`
}

// Response is a canned response description.
type Response struct {
	Description string `json:"description"`
}

// Components holds shared schemas and security schemes.
type Components struct {
	Schemas         map[string]ObjectSchema   `json:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes"`
}

// ObjectSchema is a flat object schema for a request body.
type ObjectSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
}

// PropertySchema describes one body property.
type PropertySchema struct {
	Type    string      `json:"type"`
	Example interface{} `json:"example,omitempty"`
}

// SecurityScheme describes an auth mechanism.
type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme"`
	BearerFormat string `json:"bearerFormat,omitempty"`
}

var (
	templateVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)
	pathVarRe     = regexp.MustCompile(`\{([^}]+)\}`)
	idSplitRe     = regexp.MustCompile(`[/{}-]`)
	numberValueRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	digitsRe      = regexp.MustCompile(`^\d+$`)
)

// GenerateOpenAPI builds an OpenAPI 3.0 spec from analysis results.
// Endpoints with unresolved {PARAM} placeholders and no recorded
// template variables are skipped; they cannot be described usefully.
func GenerateOpenAPI(result *analyzer.Result) *OpenAPISpec {
	spec := &OpenAPISpec{
		OpenAPI: "3.0.0",
		Info: SpecInfo{
			Title:       "Extracted API Specification",
			Description: "API specification generated from JavaScript analysis",
			Version:     "1.0.0",
		},
		Servers: []SpecServer{{URL: "/", Description: "Local server"}},
		Paths:   make(map[string]PathItem),
		Components: &Components{
			Schemas: make(map[string]ObjectSchema),
			SecuritySchemes: map[string]SecurityScheme{
				"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
			},
		},
	}

	for _, endpoint := range result.Endpoints() {
		data := result.BackendEndpoints[endpoint]

		if strings.Contains(endpoint, "{PARAM}") && len(data.TemplateParams) == 0 {
			continue
		}

		normalizedPath, pathParams := normalizePath(endpoint)
		if _, ok := spec.Paths[normalizedPath]; !ok {
			spec.Paths[normalizedPath] = make(PathItem)
		}

		methods := data.HTTPMethods
		if len(methods) == 0 {
			methods = []string{"GET"}
		}
		for _, m := range methods {
			method := strings.ToLower(m)
			if _, exists := spec.Paths[normalizedPath][method]; exists {
				continue
			}

			op := &Operation{
				Summary:     fmt.Sprintf("%s %s", strings.ToUpper(method), endpoint),
				Description: "Endpoint extracted from JavaScript analysis",
				OperationID: operationID(method, normalizedPath),
				Tags:        []string{pathTag(normalizedPath)},
				Responses: map[string]Response{
					"200": {Description: "Successful response"},
					"400": {Description: "Bad request"},
					"401": {Description: "Unauthorized"},
				},
			}

			op.Parameters = buildParameters(pathParams, data)

			if (method == "post" || method == "put" || method == "patch") && len(data.RequestBodies) > 0 {
				best := bestRequestBody(data.RequestBodies)
				schemaName := schemaName(method, normalizedPath)
				addSchema(spec, schemaName, best)

				contentType := best.ContentType
				if contentType == "" {
					contentType = "application/json"
				}
				op.RequestBody = &RequestBody{
					Description: "Request body",
					Required:    true,
					Content: map[string]MediaType{
						contentType: {Schema: SchemaRef{Ref: "#/components/schemas/" + schemaName}},
					},
				}
			}

			spec.Paths[normalizedPath][method] = op
		}
	}

	if len(spec.Components.Schemas) == 0 {
		spec.Components.Schemas = nil
	}
	return spec
}

// WriteOpenAPI generates the spec and writes it as indented JSON.
func WriteOpenAPI(path string, result *analyzer.Result) error {
	spec := GenerateOpenAPI(result)
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal OpenAPI spec: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// normalizePath converts an extracted endpoint into an OpenAPI path.
// ${var} becomes {var}; anonymous {PARAM} placeholders become
// {param1}, {param2}, ... in order.
func normalizePath(endpoint string) (string, []string) {
	path := templateVarRe.ReplaceAllString(endpoint, "{$1}")

	var pathParams []string
	paramCount := 1
	for strings.Contains(path, "{PARAM}") {
		name := fmt.Sprintf("param%d", paramCount)
		path = strings.Replace(path, "{PARAM}", "{"+name+"}", 1)
		pathParams = append(pathParams, name)
		paramCount++
	}

	for _, m := range pathVarRe.FindAllStringSubmatch(path, -1) {
		if !containsString(pathParams, m[1]) {
			pathParams = append(pathParams, m[1])
		}
	}
	return path, pathParams
}

func buildParameters(pathParams []string, data *analyzer.Endpoint) []Parameter {
	var parameters []Parameter

	for _, param := range pathParams {
		parameters = append(parameters, Parameter{
			Name:     param,
			In:       "path",
			Required: true,
			Schema:   ParamSchema{Type: "string"},
		})
	}

	for _, name := range sortedKeys(data.Params) {
		parameters = append(parameters, Parameter{
			Name:   name,
			In:     "query",
			Schema: ParamSchema{Type: queryParamType(data.Params[name])},
		})
	}

	for _, pattern := range data.DynamicPatterns {
		name, _, found := strings.Cut(pattern, "=")
		if !found {
			continue
		}
		parameters = append(parameters, Parameter{
			Name:        name,
			In:          "query",
			Schema:      ParamSchema{Type: "string"},
			Description: "Dynamic parameter (value determined at runtime)",
		})
	}
	return parameters
}

// queryParamType guesses a type from the first recorded value.
func queryParamType(values []string) string {
	if len(values) == 0 || values[0] == "" {
		return "string"
	}
	v := values[0]
	switch {
	case strings.EqualFold(v, "true") || strings.EqualFold(v, "false"):
		return "boolean"
	case digitsRe.MatchString(v):
		return "integer"
	case numberValueRe.MatchString(v):
		return "number"
	}
	return "string"
}

// operationID builds an id like getApiUsersParam1 from the method and
// path segments.
func operationID(method, path string) string {
	parts := idSplitRe.Split(strings.Trim(path, "/"), -1)
	var sb strings.Builder
	sb.WriteString(method)
	for _, part := range parts {
		if part == "" {
			continue
		}
		sb.WriteString(titleWord(part))
	}
	return sb.String()
}

func pathTag(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "api"
}

// bestRequestBody picks the candidate with the most properties.
func bestRequestBody(bodies []analyzer.BodyStructure) analyzer.BodyStructure {
	best := bodies[0]
	for _, b := range bodies[1:] {
		if len(b.Properties) > len(best.Properties) {
			best = b
		}
	}
	return best
}

func schemaName(method, path string) string {
	parts := idSplitRe.Split(strings.Trim(path, "/"), -1)
	var sb strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		sb.WriteString(titleWord(part))
	}
	sb.WriteString(titleWord(method))
	sb.WriteString("Body")
	return sb.String()
}

func addSchema(spec *OpenAPISpec, name string, body analyzer.BodyStructure) {
	if spec.Components.Schemas == nil {
		spec.Components.Schemas = make(map[string]ObjectSchema)
	}
	properties := make(map[string]PropertySchema, len(body.Properties))
	for propName, prop := range body.Properties {
		propType := prop.Type
		if propType == "" {
			propType = "string"
		}
		properties[propName] = PropertySchema{Type: propType, Example: prop.Example}
	}
	spec.Components.Schemas[name] = ObjectSchema{Type: "object", Properties: properties}
}

// titleWord uppercases the first rune and lowercases the rest.
func titleWord(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
