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
	"testing"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// componentSchema parses a minimal document wrapping the given components and
// returns the named schema proxy.
func componentSchema(t *testing.T, components, name string) *base.SchemaProxy {
	t.Helper()
	doc := fmt.Sprintf(`openapi: 3.0.0
info:
  title: test
  version: "1.0"
paths: {}
components:
  schemas:
%s`, components)

	document, err := libopenapi.NewDocument([]byte(doc))
	require.NoError(t, err)
	model, errs := document.BuildV3Model()
	require.Empty(t, errs)

	for pair := model.Model.Components.Schemas.First(); pair != nil; pair = pair.Next() {
		if pair.Key() == name {
			return pair.Value()
		}
	}
	t.Fatalf("schema %s not found", name)
	return nil
}

func TestResolveObject(t *testing.T) {
	proxy := componentSchema(t, `
    Forecast:
      type: object
      description: A weather forecast.
      properties:
        temperature:
          type: number
          description: Current temperature.
        unit:
          type: string
`, "Forecast")

	resolved := NewResolver().Resolve(proxy, "Forecast")
	require.NotNil(t, resolved)
	assert.Equal(t, "Forecast", resolved.Name)
	assert.Equal(t, "object", resolved.Type)
	assert.Equal(t, "A weather forecast.", resolved.Description)
	assert.Equal(t, []string{"temperature", "unit"}, resolved.PropertyNames())
	assert.Equal(t, "number", resolved.Properties[0].Type)
	assert.Equal(t, "Current temperature.", resolved.Properties[0].Description)
}

func TestResolveAllOfMergesBranches(t *testing.T) {
	proxy := componentSchema(t, `
    Merged:
      allOf:
        - type: object
          properties:
            street:
              type: string
            city:
              type: string
        - type: object
          properties:
            country:
              type: string
`, "Merged")

	resolved := NewResolver().Resolve(proxy, "Merged")
	require.NotNil(t, resolved)
	assert.Equal(t, "object", resolved.Type)
	assert.True(t, resolved.IsMerged())
	assert.Len(t, resolved.AllOf, 2)

	require.Len(t, resolved.Properties, 1)
	wrapper := resolved.Properties[0]
	assert.Equal(t, "all_of", wrapper.Name)
	assert.Equal(t, []string{"street", "city", "country"}, wrapper.PropertyNames())
}

func TestResolveAllOfKeepsDuplicates(t *testing.T) {
	proxy := componentSchema(t, `
    Dup:
      allOf:
        - type: object
          properties:
            id:
              type: string
        - type: object
          properties:
            id:
              type: integer
`, "Dup")

	resolved := NewResolver().Resolve(proxy, "Dup")
	require.NotNil(t, resolved)
	wrapper := resolved.Properties[0]
	assert.Equal(t, []string{"id", "id"}, wrapper.PropertyNames())
}

func TestResolveAnyOfUnion(t *testing.T) {
	proxy := componentSchema(t, `
    Value:
      anyOf:
        - type: string
          description: A literal value.
        - type: object
          properties:
            amount:
              type: integer
`, "Value")

	resolved := NewResolver().Resolve(proxy, "Value")
	require.NotNil(t, resolved)
	assert.True(t, resolved.IsUnion())
	assert.Equal(t, []string{"string", "object"}, resolved.Types)

	require.Len(t, resolved.Properties, 1)
	wrapper := resolved.Properties[0]
	assert.Equal(t, "any_of", wrapper.Name)
	require.Len(t, wrapper.Properties, 2)
	assert.Equal(t, "A literal value.", wrapper.Properties[0].Description)
	assert.Equal(t, []string{"amount"}, wrapper.Properties[1].PropertyNames())
}

func TestResolveArrayItems(t *testing.T) {
	proxy := componentSchema(t, `
    Tags:
      type: array
      items:
        type: string
    People:
      type: array
      items:
        $ref: '#/components/schemas/PersonRecord'
    PersonRecord:
      type: object
      properties:
        name:
          type: string
`, "Tags")

	r := NewResolver()
	tags := r.Resolve(proxy, "Tags")
	require.NotNil(t, tags)
	assert.Equal(t, "array", tags.Type)
	require.NotNil(t, tags.Items)
	assert.Equal(t, "string", tags.Items.Type)

	people := r.Resolve(componentSchema(t, `
    People:
      type: array
      items:
        $ref: '#/components/schemas/PersonRecord'
    PersonRecord:
      type: object
      properties:
        name:
          type: string
`, "People"), "People")
	require.NotNil(t, people)
	require.NotNil(t, people.Items)
	assert.Equal(t, "PersonRecord", people.Items.Name)
	assert.Equal(t, []string{"name"}, people.Items.PropertyNames())
}

func TestResolvePropertyRefInlined(t *testing.T) {
	proxy := componentSchema(t, `
    Order:
      type: object
      properties:
        address:
          $ref: '#/components/schemas/Address'
    Address:
      type: object
      properties:
        street:
          type: string
        city:
          type: string
`, "Order")

	resolved := NewResolver().Resolve(proxy, "Order")
	require.NotNil(t, resolved)
	require.Len(t, resolved.Properties, 1)
	address := resolved.Properties[0]
	assert.Equal(t, "address", address.Name)
	assert.Equal(t, "object", address.Type)
	assert.Equal(t, []string{"street", "city"}, address.PropertyNames())
}

func TestResolvePropertyAnyOfCollapsed(t *testing.T) {
	proxy := componentSchema(t, `
    Customer:
      type: object
      properties:
        tax:
          description: Tax configuration.
          anyOf:
            - type: string
              description: A tax code.
            - type: object
              properties:
                rate:
                  type: number
`, "Customer")

	resolved := NewResolver().Resolve(proxy, "Customer")
	require.NotNil(t, resolved)
	require.Len(t, resolved.Properties, 1)
	tax := resolved.Properties[0]
	assert.Equal(t, "tax", tax.Name)
	assert.True(t, tax.IsUnion())
	assert.Equal(t, []string{"string", "object"}, tax.Types)
	// The synthetic any_of wrapper collapses onto the property itself.
	require.Len(t, tax.Properties, 2)
	assert.Equal(t, "A tax code.", tax.Properties[0].Description)
}

func TestResolveCycleStops(t *testing.T) {
	components := `
    Person:
      type: object
      properties:
        name:
          type: string
        spouse:
          $ref: '#/components/schemas/Person'
`
	resolved := NewResolver().Resolve(componentSchema(t, components, "Person"), "Person")
	require.NotNil(t, resolved)
	assert.Equal(t, []string{"name", "spouse"}, resolved.PropertyNames())

	spouse := resolved.Properties[1]
	assert.Equal(t, "object", spouse.Type)
	// One level deep the ref expands; inside it the repeated ref stops.
	require.Len(t, spouse.Properties, 2)
	inner := spouse.Properties[1]
	assert.Equal(t, "spouse", inner.Name)
	assert.Empty(t, inner.Properties)
}

func TestResolveSiblingRefsBothExpand(t *testing.T) {
	proxy := componentSchema(t, `
    Family:
      type: object
      properties:
        mother:
          $ref: '#/components/schemas/Member'
        father:
          $ref: '#/components/schemas/Member'
    Member:
      type: object
      properties:
        name:
          type: string
`, "Family")

	resolved := NewResolver().Resolve(proxy, "Family")
	require.NotNil(t, resolved)
	require.Len(t, resolved.Properties, 2)
	// The cycle guard is per resolution path: siblings both resolve fully.
	assert.Equal(t, []string{"name"}, resolved.Properties[0].PropertyNames())
	assert.Equal(t, []string{"name"}, resolved.Properties[1].PropertyNames())
}

func TestResolveDepthLimit(t *testing.T) {
	proxy := componentSchema(t, `
    Outer:
      type: object
      properties:
        middle:
          type: object
          properties:
            inner:
              type: object
              properties:
                leaf:
                  type: string
`, "Outer")

	resolved := (&Resolver{MaxDepth: 2}).Resolve(proxy, "Outer")
	require.NotNil(t, resolved)
	require.Len(t, resolved.Properties, 1)
	middle := resolved.Properties[0]
	assert.Equal(t, "object", middle.Type)
	// Past the depth bound nesting is dropped, not failed.
	assert.Empty(t, middle.Properties)
}

func TestResolveNilPastMaxDepth(t *testing.T) {
	proxy := componentSchema(t, `
    Simple:
      type: object
`, "Simple")

	r := &Resolver{MaxDepth: 3}
	assert.Nil(t, r.resolve(proxy, "Simple", 3, map[string]bool{}))
	assert.Nil(t, r.resolve(nil, "Simple", 0, map[string]bool{}))
}
