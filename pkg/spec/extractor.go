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

package spec

import (
	"fmt"
	"regexp"

	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"gopkg.in/yaml.v3"
)

// CompileRoutes compiles route filter patterns into prefix-anchored regexes.
// A pattern matches any path it is a regex prefix of; an explicit trailing $
// still forces a full match. An invalid pattern fails the whole set.
func CompileRoutes(patterns []string) ([]*regexp.Regexp, error) {
	routes := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid route pattern %q: %w", p, err)
		}
		routes = append(routes, re)
	}
	return routes, nil
}

// Extractor walks a parsed OpenAPI v3 model and produces a Spec: route-filtered
// paths with resolved operations. Document order of paths, parameters and
// properties is preserved throughout.
type Extractor struct {
	Resolver *Resolver
}

// NewExtractor returns an Extractor with a default-depth Resolver.
func NewExtractor() *Extractor {
	return &Extractor{Resolver: NewResolver()}
}

// Extract builds a Spec from doc, keeping only paths matched by routes.
// An empty route set keeps every path.
func (e *Extractor) Extract(doc *v3.Document, source string, routes []*regexp.Regexp) *Spec {
	out := &Spec{Source: source}
	if doc == nil || doc.Paths == nil || doc.Paths.PathItems == nil {
		return out
	}
	for pair := doc.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		pattern := pair.Key()
		if !matchesAny(pattern, routes) {
			continue
		}
		path := Path{Path: pattern}
		found := false
		for _, method := range Methods {
			v3op := operationFor(pair.Value(), method)
			if v3op == nil {
				continue
			}
			path.setOperation(method, e.extractOperation(pattern, v3op))
			found = true
		}
		if found {
			out.Paths = append(out.Paths, path)
		}
	}
	return out
}

func matchesAny(path string, routes []*regexp.Regexp) bool {
	if len(routes) == 0 {
		return true
	}
	for _, re := range routes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func operationFor(item *v3.PathItem, method string) *v3.Operation {
	if item == nil {
		return nil
	}
	switch method {
	case "GET":
		return item.Get
	case "POST":
		return item.Post
	case "PUT":
		return item.Put
	case "DELETE":
		return item.Delete
	case "PATCH":
		return item.Patch
	}
	return nil
}

func (e *Extractor) extractOperation(pattern string, v3op *v3.Operation) *Operation {
	op := &Operation{
		ID:          v3op.OperationId,
		Summary:     v3op.Summary,
		Description: v3op.Description,
	}
	if op.ID == "" {
		// No operationId in the document: the path pattern stands in.
		op.ID = pattern
	}
	op.Parameters = e.extractParameters(v3op)
	op.RequestBody = e.extractRequestBody(v3op.RequestBody)
	op.Responses = e.extractResponses(v3op)
	return op
}

// extractParameters projects declared parameters onto the primitive Parameter
// shape. Parameters carrying an enum are forced required regardless of the
// document's required flag.
func (e *Extractor) extractParameters(v3op *v3.Operation) []Parameter {
	var params []Parameter
	for _, param := range v3op.Parameters {
		if param == nil {
			continue
		}
		loc := ParameterLocation(param.In)
		switch loc {
		case LocationQuery, LocationPath, LocationHeader:
		default:
			continue
		}
		p := Parameter{Name: param.Name, In: loc, Description: param.Description}
		if param.Required != nil {
			p.Required = *param.Required
		}
		if param.Schema != nil {
			if sch := param.Schema.Schema(); sch != nil {
				p.Type, p.Types = paramType(sch)
				p.Enum = decodeNodes(sch.Enum)
				p.Default = decodeNode(sch.Default)
				if p.Description == "" {
					p.Description = sch.Description
				}
			}
		}
		if p.Type == "" && len(p.Types) == 0 {
			p.Type = "string"
		}
		if len(p.Enum) > 0 {
			p.Required = true
		}
		params = append(params, p)
	}
	return params
}

// paramType returns either a single primitive type or, for anyOf/oneOf
// parameter schemas, the list of branch types in branch order.
func paramType(sch *base.Schema) (string, []string) {
	branches := sch.AnyOf
	if len(branches) == 0 {
		branches = sch.OneOf
	}
	if len(branches) > 0 {
		types := make([]string, 0, len(branches))
		for _, proxy := range branches {
			if b := proxy.Schema(); b != nil {
				types = append(types, typeOf(b))
			}
		}
		return "", types
	}
	if len(sch.Type) > 0 && sch.Type[0] != "" {
		return sch.Type[0], nil
	}
	return "string", nil
}

// extractRequestBody selects the operation's body content type, preferring
// form-urlencoded over JSON, and resolves its schema. Other content types are
// not exposed as tool input.
func (e *Extractor) extractRequestBody(rb *v3.RequestBody) *RequestBody {
	if rb == nil || rb.Content == nil {
		return nil
	}
	var media *v3.MediaType
	var contentType string
	for _, ct := range []string{ContentTypeForm, ContentTypeJSON} {
		for pair := rb.Content.First(); pair != nil; pair = pair.Next() {
			if pair.Key() == ct {
				media, contentType = pair.Value(), ct
				break
			}
		}
		if media != nil {
			break
		}
	}
	if media == nil {
		return nil
	}

	body := &RequestBody{ContentType: contentType}
	if rb.Required != nil {
		body.Required = *rb.Required
	}
	if media.Schema != nil {
		body.Schema = e.Resolver.Resolve(media.Schema, "inline")
	}
	if media.Encoding != nil {
		body.Encoding = make(map[string]Encoding)
		for pair := media.Encoding.First(); pair != nil; pair = pair.Next() {
			enc := pair.Value()
			if enc == nil {
				continue
			}
			body.Encoding[pair.Key()] = Encoding{
				Explode:       enc.Explode,
				Style:         enc.Style,
				AllowReserved: enc.AllowReserved,
				ContentType:   enc.ContentType,
			}
		}
	}
	return body
}

// extractResponses resolves response schemas for JSON content only; every
// other response is recorded as text/plain with no schema.
func (e *Extractor) extractResponses(v3op *v3.Operation) map[string]Response {
	if v3op.Responses == nil || v3op.Responses.Codes == nil {
		return nil
	}
	responses := make(map[string]Response)
	for pair := v3op.Responses.Codes.First(); pair != nil; pair = pair.Next() {
		resp := pair.Value()
		if resp == nil {
			continue
		}
		r := Response{Description: resp.Description, Format: ContentTypeText}
		if resp.Content != nil {
			for cp := resp.Content.First(); cp != nil; cp = cp.Next() {
				if cp.Key() != ContentTypeJSON {
					continue
				}
				r.Format = ContentTypeJSON
				if media := cp.Value(); media != nil && media.Schema != nil {
					r.Schema = e.Resolver.Resolve(media.Schema, "inline")
				}
				break
			}
		}
		responses[pair.Key()] = r
	}
	return responses
}

// decodeNodes decodes raw YAML enum nodes into plain Go values.
func decodeNodes(nodes []*yaml.Node) []any {
	if len(nodes) == 0 {
		return nil
	}
	values := make([]any, 0, len(nodes))
	for _, n := range nodes {
		if v := decodeNode(n); v != nil {
			values = append(values, v)
		}
	}
	return values
}

func decodeNode(node *yaml.Node) any {
	if node == nil {
		return nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil
	}
	return v
}
