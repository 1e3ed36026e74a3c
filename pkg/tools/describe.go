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
	"fmt"
	"strings"

	"github.com/mcpgate/mcpgate/pkg/spec"
)

// descriptionBudget caps enum-bearing parameter descriptions. Longer ones are
// truncated to the first two options.
const descriptionBudget = 100

// snakeCase lowercases s and converts camelCase and kebab-case boundaries to
// underscores. ASCII only; OpenAPI identifiers in practice are.
func snakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			if i > 0 && s[i-1] != '_' && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			b.WriteByte(c + ('a' - 'A'))
		case c == '-' || c == ' ' || c == '.':
			b.WriteByte('_')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// toolName derives a tool name from an operation id (or its path fallback):
// braces dropped, path separators and dashes folded to underscores, then
// snake_cased.
func toolName(operationID string) string {
	cleaned := strings.NewReplacer("{", "", "}", "", "/", "_", "-", "_").Replace(operationID)
	return strings.Trim(snakeCase(cleaned), "_")
}

// paramName normalizes a raw parameter name. A trailing "[]" is stripped and
// the name pluralized before snake_casing, so "option[]" becomes "options".
func paramName(raw string) string {
	if base, ok := strings.CutSuffix(raw, "[]"); ok {
		return snakeCase(base) + "s"
	}
	return snakeCase(raw)
}

// dedupKey is the identity used when collapsing duplicate parameter
// declarations: the scalar and "[]" spellings of a name collide.
func dedupKey(raw string) string {
	return snakeCase(strings.TrimSuffix(raw, "[]"))
}

// mapPrimitive maps an OpenAPI primitive type onto the tool type vocabulary.
// Anything unrecognized reads as a string.
func mapPrimitive(t string) string {
	switch t {
	case "integer":
		return "integer"
	case "number":
		return "float"
	case "boolean":
		return "bool"
	default:
		return "string"
	}
}

// mapUnion renders an anyOf/oneOf branch type list. Object and unknown
// branches read as "any"; branch order is preserved.
func mapUnion(types []string) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		switch t {
		case "string", "integer", "number", "boolean":
			parts = append(parts, mapPrimitive(t))
		default:
			parts = append(parts, "any")
		}
	}
	return strings.Join(parts, " | ")
}

// mapItem renders an array element type for list[...] display.
func mapItem(item *spec.Schema) string {
	if item == nil || item.Type == "object" || item.Type == "" {
		return "any"
	}
	return mapPrimitive(item.Type)
}

// paramType renders the display type of a declared parameter. A "[]" name
// suffix always reads as a list of the declared base type.
func paramType(p spec.Parameter) string {
	base := p.Type
	if len(p.Types) > 0 {
		if strings.HasSuffix(p.Name, "[]") {
			return "list[" + mapUnion(p.Types) + "]"
		}
		return mapUnion(p.Types)
	}
	if strings.HasSuffix(p.Name, "[]") {
		return "list[" + mapPrimitive(base) + "]"
	}
	return mapPrimitive(base)
}

// enumDescription appends the "Options: " suffix for enum parameters. When
// the combined text exceeds the description budget it is cut to at most the
// first two options and always ends with an ellipsis.
func enumDescription(desc string, enum []any) string {
	if len(enum) == 0 {
		return desc
	}
	opts := make([]string, 0, len(enum))
	for _, v := range enum {
		opts = append(opts, fmt.Sprintf("%v", v))
	}
	prefix := desc
	if prefix != "" {
		prefix += " "
	}
	full := prefix + "Options: " + strings.Join(opts, ", ")
	if len(full) <= descriptionBudget {
		return full
	}
	kept := opts
	if len(kept) > 2 {
		kept = kept[:2]
	}
	return prefix + "Options: " + strings.Join(kept, ", ") + ", ..."
}

// unionDescription renders the description of an anyOf body property:
// the property's own text followed by one clause per branch.
func unionDescription(prop *spec.Schema) string {
	branches := prop.Properties
	if len(branches) == 0 {
		branches = prop.AnyOf
	}
	parts := make([]string, 0, len(branches))
	for _, b := range branches {
		switch {
		case b.Description != "":
			parts = append(parts, "("+b.Description+")")
		case len(b.Properties) > 0:
			parts = append(parts, "(Object with properties: "+strings.Join(b.PropertyNames(), ", ")+")")
		default:
			parts = append(parts, "("+b.Type+")")
		}
	}
	base := ""
	if prop.Description != "" {
		base = prop.Description + ", "
	}
	return base + "one of: " + strings.Join(parts, " OR ")
}

// sanitizeDescription collapses newlines and normalizes double quotes so tool
// descriptions stay single-line and JSON-friendly.
func sanitizeDescription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, `"`, "'")
	return strings.TrimSpace(s)
}
