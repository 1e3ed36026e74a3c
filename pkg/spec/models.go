// Copyright 2025 mcpgate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package spec turns raw OpenAPI documents into a resolved, immutable
// in-memory representation: a filtered list of paths whose operations carry
// fully resolved parameter, request-body and response schemas. Only
// inline/ref/allOf/anyOf composition is supported; oneOf and not are ignored.
package spec

// Schema is a resolved node in the normalized type tree. A Schema is built
// once by the resolver and never mutated afterwards, so it is safe to share
// across goroutines.
//
// Exactly one shape drives interpretation per node: a populated AllOf, a
// populated AnyOf, an array (Items set), or a plain object (Properties).
// AllOf and AnyOf nodes additionally expose a single synthetic child named
// "all_of" / "any_of" whose Properties hold the merged or branch schemas.
type Schema struct {
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	Types       []string  `json:"types,omitempty"` // union of branch types, set for anyOf nodes
	Description string    `json:"description,omitempty"`
	Properties  []*Schema `json:"properties,omitempty"`
	Items       *Schema   `json:"items,omitempty"`
	AnyOf       []*Schema `json:"anyOf,omitempty"`
	AllOf       []*Schema `json:"allOf,omitempty"`
}

// IsUnion reports whether the schema represents an anyOf union.
func (s *Schema) IsUnion() bool { return len(s.AnyOf) > 0 }

// IsMerged reports whether the schema was produced by merging allOf branches.
func (s *Schema) IsMerged() bool { return len(s.AllOf) > 0 }

// PropertyNames returns the names of the schema's direct properties in order.
func (s *Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	return names
}

// ParameterLocation is the OpenAPI "in" value of a parameter.
type ParameterLocation string

const (
	LocationQuery  ParameterLocation = "query"
	LocationPath   ParameterLocation = "path"
	LocationHeader ParameterLocation = "header"
)

// Parameter is a declared operation parameter with a primitive-only schema
// projection. Parameters carrying an enum are always marked required, even
// when the source document says otherwise; downstream description and
// truncation logic depends on that.
type Parameter struct {
	Name        string            `json:"name"`
	In          ParameterLocation `json:"in"`
	Required    bool              `json:"required"`
	Type        string            `json:"type,omitempty"`
	Types       []string          `json:"types,omitempty"` // union branches from anyOf/oneOf parameter schemas
	Enum        []any             `json:"enum,omitempty"`
	Default     any               `json:"default,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Encoding carries form-encoding hints per request-body field. Informational
// only; the proxy does not act on them.
type Encoding struct {
	Explode       *bool  `json:"explode,omitempty"`
	Style         string `json:"style,omitempty"`
	AllowReserved bool   `json:"allowReserved,omitempty"`
	ContentType   string `json:"contentType,omitempty"`
}

// Content types supported for request bodies. Form-encoded content is
// preferred over JSON when an operation declares both.
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeText = "text/plain"
)

// RequestBody is an operation's resolved request body for its selected
// content type.
type RequestBody struct {
	Required    bool                `json:"required"`
	ContentType string              `json:"contentType"`
	Schema      *Schema             `json:"schema,omitempty"`
	Encoding    map[string]Encoding `json:"encoding,omitempty"`
}

// Response is one status code's response. Schema is resolved only for JSON
// responses; everything else defaults to text/plain with no schema.
type Response struct {
	Description string  `json:"description"`
	Schema      *Schema `json:"schema,omitempty"`
	Format      string  `json:"format"`
}

// Operation is one HTTP-method handler on one path. ID falls back to the
// path pattern when the source document has no operationId.
type Operation struct {
	ID          string              `json:"id"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses,omitempty"`
}

// Path is one URL pattern with up to one operation per supported method.
type Path struct {
	Path   string     `json:"path"`
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
}

// Methods lists the HTTP methods supported for tool generation, in the fixed
// order operations are visited.
var Methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// Operation returns the operation registered for method, or nil.
func (p *Path) Operation(method string) *Operation {
	switch method {
	case "GET":
		return p.Get
	case "POST":
		return p.Post
	case "PUT":
		return p.Put
	case "DELETE":
		return p.Delete
	case "PATCH":
		return p.Patch
	}
	return nil
}

// setOperation stores op under method during extraction.
func (p *Path) setOperation(method string, op *Operation) {
	switch method {
	case "GET":
		p.Get = op
	case "POST":
		p.Post = op
	case "PUT":
		p.Put = op
	case "DELETE":
		p.Delete = op
	case "PATCH":
		p.Patch = op
	}
}

// Spec is the resolved representation of one OpenAPI document after route
// filtering. It is produced once per (source, sorted route patterns) and is
// immutable thereafter; it may be cached to disk and shared read-only across
// concurrent tool invocations.
type Spec struct {
	Source string `json:"source"`
	Paths  []Path `json:"paths"`
}
