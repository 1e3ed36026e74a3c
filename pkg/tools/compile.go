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

package tools

import (
	"sort"

	"github.com/mcpgate/mcpgate/pkg/spec"
)

// Compiler turns a resolved Spec into Tool descriptors. Excluded lists raw
// parameter names the gateway injects itself (forwarded headers or query
// params); those never surface as tool arguments.
type Compiler struct {
	Excluded []string
}

// NewCompiler returns a Compiler excluding the given raw parameter names.
func NewCompiler(excluded ...string) *Compiler {
	return &Compiler{Excluded: excluded}
}

// Compile produces one Tool per operation, in path then method order.
func (c *Compiler) Compile(s *spec.Spec) []Tool {
	var out []Tool
	for i := range s.Paths {
		path := &s.Paths[i]
		for _, method := range spec.Methods {
			op := path.Operation(method)
			if op == nil {
				continue
			}
			out = append(out, c.compileOperation(method, path.Path, op))
		}
	}
	return out
}

func (c *Compiler) compileOperation(method, path string, op *spec.Operation) Tool {
	desc := op.Summary
	if desc == "" {
		desc = op.Description
	}
	t := Tool{
		Name:        toolName(op.ID),
		Description: sanitizeDescription(desc),
		Method:      method,
		Path:        path,
	}
	t.QueryParams = c.compileParameters(op.Parameters)
	if op.RequestBody != nil {
		t.BodyByContentType = map[string][]ToolParameter{
			op.RequestBody.ContentType: compileBody(op.RequestBody),
		}
	}
	return t
}

// compileParameters flattens declared parameters. Declarations are sorted by
// raw name in reverse order before deduplication, so when a name appears both
// bare and with a "[]" suffix the list spelling wins.
func (c *Compiler) compileParameters(params []spec.Parameter) []ToolParameter {
	sorted := append([]spec.Parameter(nil), params...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name > sorted[j].Name })

	seen := make(map[string]bool)
	var out []ToolParameter
	for _, p := range sorted {
		if c.isExcluded(p.Name) {
			continue
		}
		key := dedupKey(p.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ToolParameter{
			Name:        paramName(p.Name),
			RawName:     p.Name,
			In:          p.In,
			Type:        paramType(p),
			Description: enumDescription(sanitizeDescription(p.Description), p.Enum),
			Required:    p.Required,
			Default:     p.Default,
			Enum:        p.Enum,
		})
	}
	return out
}

func (c *Compiler) isExcluded(rawName string) bool {
	for _, name := range c.Excluded {
		if name == rawName {
			return true
		}
	}
	return false
}

// compileBody flattens the request body schema into tool parameters.
// RequestBodyField keeps the raw body key so the proxy can reassemble the
// upstream payload; the parameter name is the normalized spelling.
func compileBody(rb *spec.RequestBody) []ToolParameter {
	if rb.Schema == nil {
		return nil
	}
	var out []ToolParameter
	for _, prop := range bodyProperties(rb.Schema) {
		out = append(out, compileBodyProperty(prop)...)
	}
	return out
}

// bodyProperties unwraps a top-level composition: an allOf or anyOf body
// schema exposes the properties of its synthetic wrapper child.
func bodyProperties(sch *spec.Schema) []*spec.Schema {
	if (sch.IsMerged() || sch.IsUnion()) && len(sch.Properties) == 1 {
		return sch.Properties[0].Properties
	}
	return sch.Properties
}

// compileBodyProperty flattens one body member:
//   - anyOf unions become a single parameter whose description enumerates the
//     branches
//   - allOf members contribute one parameter per scalar leaf, addressed with
//     a dotted RequestBodyField
//   - arrays and scalars map straight through
//   - plain nested objects are not exposed
func compileBodyProperty(prop *spec.Schema) []ToolParameter {
	switch {
	case prop.IsUnion():
		return []ToolParameter{{
			Name:             paramName(prop.Name),
			Type:             mapUnion(unionTypes(prop)),
			Description:      sanitizeDescription(unionDescription(prop)),
			RequestBodyField: prop.Name,
		}}

	case prop.IsMerged():
		var out []ToolParameter
		for _, leaf := range prop.Properties {
			if len(leaf.Properties) > 0 || leaf.IsUnion() || leaf.IsMerged() {
				continue
			}
			out = append(out, ToolParameter{
				Name:             paramName(prop.Name) + "_" + paramName(leaf.Name),
				Type:             leafType(leaf),
				Description:      sanitizeDescription(leaf.Description),
				RequestBodyField: prop.Name + "." + leaf.Name,
			})
		}
		return out

	case prop.Type == "array":
		return []ToolParameter{{
			Name:             paramName(prop.Name),
			Type:             "list[" + mapItem(prop.Items) + "]",
			Description:      sanitizeDescription(prop.Description),
			RequestBodyField: prop.Name,
		}}

	case len(prop.Properties) > 0:
		return nil

	default:
		return []ToolParameter{{
			Name:             paramName(prop.Name),
			Type:             mapPrimitive(prop.Type),
			Description:      sanitizeDescription(prop.Description),
			RequestBodyField: prop.Name,
		}}
	}
}

func leafType(leaf *spec.Schema) string {
	if leaf.Type == "array" {
		return "list[" + mapItem(leaf.Items) + "]"
	}
	return mapPrimitive(leaf.Type)
}

func unionTypes(prop *spec.Schema) []string {
	if len(prop.Types) > 0 {
		return prop.Types
	}
	types := make([]string, 0, len(prop.AnyOf))
	for _, b := range prop.AnyOf {
		types = append(types, b.Type)
	}
	return types
}
