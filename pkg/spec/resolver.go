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
	"strings"

	"github.com/pb33f/libopenapi/datamodel/high/base"
)

// DefaultMaxDepth bounds schema recursion. Subtrees past this depth resolve
// to nil rather than failing the whole spec load.
const DefaultMaxDepth = 10

// Resolver normalizes raw OpenAPI schema nodes into Schema trees. It holds
// no mutable state across calls, so a single Resolver may be used from any
// number of goroutines.
//
// Cycle detection is path-scoped: the visited set grows on the way down one
// resolution path and shrinks on the way back up, so the same $ref reached
// via independent sibling branches resolves normally, while a ref repeated
// along one path stops with no nested properties.
type Resolver struct {
	// MaxDepth overrides DefaultMaxDepth when > 0.
	MaxDepth int
}

// NewResolver returns a Resolver with the default depth bound.
func NewResolver() *Resolver { return &Resolver{MaxDepth: DefaultMaxDepth} }

func (r *Resolver) maxDepth() int {
	if r.MaxDepth > 0 {
		return r.MaxDepth
	}
	return DefaultMaxDepth
}

// Resolve normalizes one schema node. name is used for inline schemas; a
// $ref node is named after the referenced component instead.
func (r *Resolver) Resolve(proxy *base.SchemaProxy, name string) *Schema {
	return r.resolve(proxy, name, 0, map[string]bool{})
}

func (r *Resolver) resolve(proxy *base.SchemaProxy, name string, depth int, visited map[string]bool) *Schema {
	if proxy == nil || depth >= r.maxDepth() {
		return nil
	}
	if proxy.IsReference() {
		ref := proxy.GetReference()
		if visited[ref] {
			// Same ref twice on one resolution path: cycle, stop here.
			return nil
		}
		visited[ref] = true
		defer delete(visited, ref)
		name = refName(ref)
	}
	sch := proxy.Schema()
	if sch == nil {
		return nil
	}

	// Composition precedence: allOf, else anyOf, else array, else object.
	switch {
	case len(sch.AllOf) > 0:
		return r.resolveAllOf(sch, name, depth, visited)
	case len(sch.AnyOf) > 0:
		return r.resolveAnyOf(sch, name, depth, visited)
	case typeOf(sch) == "array":
		return &Schema{
			Name:        name,
			Type:        "array",
			Description: sch.Description,
			Items:       r.resolveItems(sch, depth, visited),
		}
	default:
		return r.resolveObject(sch, name, depth, visited)
	}
}

// resolveAllOf merges every branch's properties, in branch order, under a
// single synthetic "all_of" child. Duplicate property names across branches
// are preserved as-is. The original branches stay available under AllOf.
func (r *Resolver) resolveAllOf(sch *base.Schema, name string, depth int, visited map[string]bool) *Schema {
	var branches []*Schema
	var merged []*Schema
	for _, proxy := range sch.AllOf {
		branch := r.resolve(proxy, "inline", depth+1, visited)
		if branch == nil {
			continue
		}
		branches = append(branches, branch)
		merged = append(merged, branch.Properties...)
	}
	return &Schema{
		Name:        name,
		Type:        "object",
		Description: sch.Description,
		Properties:  []*Schema{{Name: "all_of", Type: "object", Properties: merged}},
		AllOf:       branches,
	}
}

// resolveAnyOf keeps each branch intact under a synthetic "any_of" child and
// records the union of branch types on the wrapper.
func (r *Resolver) resolveAnyOf(sch *base.Schema, name string, depth int, visited map[string]bool) *Schema {
	var branches []*Schema
	var types []string
	for _, proxy := range sch.AnyOf {
		branch := r.resolve(proxy, "inline", depth+1, visited)
		if branch == nil {
			continue
		}
		branches = append(branches, branch)
		if len(branch.Types) > 0 {
			types = append(types, branch.Types...)
		} else {
			types = append(types, branch.Type)
		}
	}
	return &Schema{
		Name:        name,
		Types:       types,
		Description: sch.Description,
		Properties:  []*Schema{{Name: "any_of", Type: "object", Properties: branches}},
		AnyOf:       branches,
	}
}

// resolveItems resolves an array schema's element type. A $ref to an object
// schema is inlined under a synthetic item Schema named after the ref; bare
// scalars become an "item" node with just a type.
func (r *Resolver) resolveItems(sch *base.Schema, depth int, visited map[string]bool) *Schema {
	if sch.Items == nil || !sch.Items.IsA() {
		return nil
	}
	itemProxy := sch.Items.A
	if itemProxy == nil {
		return nil
	}
	itemSchema := itemProxy.Schema()
	if itemProxy.IsReference() || (itemSchema != nil && typeOf(itemSchema) == "object") {
		return r.resolve(itemProxy, "item", depth+1, visited)
	}
	if itemSchema == nil {
		return nil
	}
	return &Schema{Name: "item", Type: typeOf(itemSchema)}
}

func (r *Resolver) resolveObject(sch *base.Schema, name string, depth int, visited map[string]bool) *Schema {
	out := &Schema{Name: name, Type: "object", Description: sch.Description}
	if sch.Properties == nil {
		return out
	}
	for pair := sch.Properties.First(); pair != nil; pair = pair.Next() {
		if prop := r.resolveProperty(pair.Key(), pair.Value(), depth, visited); prop != nil {
			out.Properties = append(out.Properties, prop)
		}
	}
	return out
}

// resolveProperty resolves one object member. Composed members (anyOf,
// allOf, $ref) are resolved recursively and collapsed one level: a
// composition's synthetic wrapper child contributes its shape to the
// property itself, and a $ref's resolved contents are inlined directly.
// This collapse decides downstream whether a member reads as a nested
// object or a union field, so it must not be "simplified".
func (r *Resolver) resolveProperty(propName string, propProxy *base.SchemaProxy, depth int, visited map[string]bool) *Schema {
	if propProxy == nil {
		return nil
	}
	raw := propProxy.Schema()
	if raw == nil {
		return nil
	}

	composed := propProxy.IsReference() || len(raw.AllOf) > 0 || len(raw.AnyOf) > 0
	if composed {
		resolved := r.resolve(propProxy, propName, depth+1, visited)
		if resolved == nil {
			// Cycle or depth limit: keep the member, drop its nesting.
			return &Schema{Name: propName, Type: typeOf(raw), Description: raw.Description}
		}
		prop := &Schema{
			Name:        propName,
			Type:        resolved.Type,
			Types:       resolved.Types,
			Description: firstNonEmpty(raw.Description, resolved.Description),
			AnyOf:       resolved.AnyOf,
			AllOf:       resolved.AllOf,
		}
		if len(resolved.AnyOf) > 0 || len(resolved.AllOf) > 0 {
			if len(resolved.Properties) > 0 {
				wrapper := resolved.Properties[0]
				prop.Properties = wrapper.Properties
				prop.Items = wrapper.Items
			}
		} else {
			prop.Properties = resolved.Properties
			prop.Items = resolved.Items
		}
		return prop
	}

	switch t := typeOf(raw); t {
	case "array":
		return &Schema{
			Name:        propName,
			Type:        "array",
			Description: raw.Description,
			Items:       r.resolveItems(raw, depth, visited),
		}
	case "object":
		nested := r.resolve(propProxy, propName, depth+1, visited)
		if nested == nil {
			return &Schema{Name: propName, Type: "object", Description: raw.Description}
		}
		nested.Name = propName
		if nested.Description == "" {
			nested.Description = raw.Description
		}
		return nested
	default:
		return &Schema{Name: propName, Type: t, Description: raw.Description}
	}
}

// typeOf returns a schema's primary type, defaulting to object when the
// document omits one.
func typeOf(sch *base.Schema) string {
	if len(sch.Type) > 0 && sch.Type[0] != "" {
		return sch.Type[0]
	}
	return "object"
}

// refName extracts the component name from a $ref string.
func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
