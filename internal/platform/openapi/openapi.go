package openapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Param describes a path or query parameter.
type Param struct {
	Name        string
	In          string // "path" or "query"
	Required    bool
	Description string
	Enum        []string
}

// Response describes one status code of an operation. Schema is a component
// name; empty means no body.
type Response struct {
	Description string
	Schema      string
	Array       bool
}

// Operation describes one route. Path uses echo syntax (":id").
type Operation struct {
	Method      string
	Path        string
	Summary     string
	OperationID string
	Tag         string
	Params      []Param
	RequestBody string
	Responses   map[int]Response
}

// Generator builds an OpenAPI 3.0 document from registered operations and
// component schemas.
type Generator struct {
	title   string
	version string
	baseURL string
	ops     []Operation
	schemas map[string]map[string]interface{}
}

// NewGenerator creates a new OpenAPI spec generator.
func NewGenerator(title, version, baseURL string) *Generator {
	return &Generator{
		title:   title,
		version: version,
		baseURL: baseURL,
		schemas: make(map[string]map[string]interface{}),
	}
}

func (g *Generator) AddOperations(ops ...Operation) {
	g.ops = append(g.ops, ops...)
}

func (g *Generator) AddSchema(name string, schema map[string]interface{}) {
	g.schemas[name] = schema
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]interface{})
	var tags []string
	seenTags := make(map[string]bool)

	for _, op := range g.ops {
		path := toOpenAPIPath(op.Path)
		item, _ := paths[path].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[path] = item
		}
		item[strings.ToLower(op.Method)] = g.buildOperation(op)

		if op.Tag != "" && !seenTags[op.Tag] {
			seenTags[op.Tag] = true
			tags = append(tags, op.Tag)
		}
	}
	sort.Strings(tags)

	tagList := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		tagList = append(tagList, map[string]string{"name": t})
	}

	schemas := make(map[string]interface{}, len(g.schemas))
	for name, s := range g.schemas {
		schemas[name] = s
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"tags":  tagList,
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": schemas,
		},
	}
}

func (g *Generator) buildOperation(op Operation) map[string]interface{} {
	out := map[string]interface{}{
		"summary":     op.Summary,
		"operationId": op.OperationID,
	}
	if op.Tag != "" {
		out["tags"] = []string{op.Tag}
	}

	if len(op.Params) > 0 {
		params := make([]map[string]interface{}, 0, len(op.Params))
		for _, p := range op.Params {
			schema := map[string]interface{}{"type": "string"}
			if len(p.Enum) > 0 {
				schema["enum"] = p.Enum
			}
			param := map[string]interface{}{
				"name":     p.Name,
				"in":       p.In,
				"required": p.Required || p.In == "path",
				"schema":   schema,
			}
			if p.Description != "" {
				param["description"] = p.Description
			}
			params = append(params, param)
		}
		out["parameters"] = params
	}

	if op.RequestBody != "" {
		out["requestBody"] = map[string]interface{}{
			"required": true,
			"content":  jsonContent(ref(op.RequestBody)),
		}
	}

	responses := make(map[string]interface{}, len(op.Responses))
	for code, r := range op.Responses {
		resp := map[string]interface{}{"description": r.Description}
		if r.Schema != "" {
			schema := ref(r.Schema)
			if r.Array {
				schema = map[string]interface{}{"type": "array", "items": schema}
			}
			resp["content"] = jsonContent(schema)
		}
		responses[strconv.Itoa(code)] = resp
	}
	out["responses"] = responses
	return out
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

// toOpenAPIPath rewrites echo path params (":id") as OpenAPI templates ("{id}").
func toOpenAPIPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Patient Management System API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes serves the document at /openapi.json and a Swagger UI at /docs.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	spec := g.GenerateSpec()
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, spec)
	})
	e.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
