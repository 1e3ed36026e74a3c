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

// Package tools compiles resolved OpenAPI specs into flat MCP tool
// descriptors. Compilation is pure and synchronous; the resulting Tool values
// are immutable and shared read-only by every invocation handler.
package tools

import (
	"sort"

	"github.com/mcpgate/mcpgate/pkg/spec"
)

// ToolParameter is one flattened tool argument. RawName keeps the document's
// original spelling, needed to fill {placeholder} path templates whose casing
// the snake_case Name no longer matches. RequestBodyField is empty for query,
// path and header parameters; for body parameters it holds the raw
// (unnormalized) body key, dotted for fields lifted out of allOf properties.
type ToolParameter struct {
	Name             string                 `json:"name"`
	RawName          string                 `json:"rawName,omitempty"`
	In               spec.ParameterLocation `json:"in,omitempty"`
	Type             string                 `json:"type"`
	Description      string                 `json:"description,omitempty"`
	Required         bool                   `json:"required"`
	Default          any                    `json:"default,omitempty"`
	Enum             []any                  `json:"enum,omitempty"`
	RequestBodyField string                 `json:"requestBodyField,omitempty"`
}

// IsBody reports whether the parameter belongs to the request body.
func (p ToolParameter) IsBody() bool { return p.RequestBodyField != "" }

// Tool is a compiled MCP tool bound to one HTTP operation. Body parameters
// are partitioned by content type so the handler can pick the encoding the
// upstream operation declared.
type Tool struct {
	Name              string                     `json:"name"`
	Description       string                     `json:"description,omitempty"`
	Method            string                     `json:"method"`
	Path              string                     `json:"path"`
	QueryParams       []ToolParameter            `json:"queryParams,omitempty"`
	BodyByContentType map[string][]ToolParameter `json:"bodyByContentType,omitempty"`
}

// ContentType returns the tool's body content type, or "" for body-less tools.
func (t *Tool) ContentType() string {
	for _, ct := range bodyContentTypeOrder(t.BodyByContentType) {
		return ct
	}
	return ""
}

// BodyParams returns the body parameters for the tool's content type.
func (t *Tool) BodyParams() []ToolParameter {
	return t.BodyByContentType[t.ContentType()]
}

// Parameters returns all parameters, query first then body, in a
// deterministic order.
func (t *Tool) Parameters() []ToolParameter {
	out := append([]ToolParameter(nil), t.QueryParams...)
	for _, ct := range bodyContentTypeOrder(t.BodyByContentType) {
		out = append(out, t.BodyByContentType[ct]...)
	}
	return out
}

// bodyContentTypeOrder yields content types form-first, then JSON, then the
// rest sorted, so iteration order never depends on map order.
func bodyContentTypeOrder(body map[string][]ToolParameter) []string {
	if len(body) == 0 {
		return nil
	}
	var order []string
	for _, ct := range []string{spec.ContentTypeForm, spec.ContentTypeJSON} {
		if _, ok := body[ct]; ok {
			order = append(order, ct)
		}
	}
	var rest []string
	for ct := range body {
		if ct != spec.ContentTypeForm && ct != spec.ContentTypeJSON {
			rest = append(rest, ct)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
