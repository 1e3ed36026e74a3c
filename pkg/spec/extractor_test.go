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
	"testing"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildModel(t *testing.T, doc string) *v3.Document {
	t.Helper()
	document, err := libopenapi.NewDocument([]byte(doc))
	require.NoError(t, err)
	model, errs := document.BuildV3Model()
	require.Empty(t, errs)
	return &model.Model
}

const weatherDoc = `openapi: 3.0.0
info:
  title: Weather
  version: "1.0"
paths:
  /v1/forecast:
    get:
      operationId: getForecast
      summary: Get the weather forecast.
      parameters:
        - name: latitude
          in: query
          required: true
          schema:
            type: number
        - name: longitude
          in: query
          required: true
          schema:
            type: number
        - name: temperature_unit
          in: query
          schema:
            type: string
            enum: [celsius, fahrenheit]
            default: celsius
        - name: session
          in: cookie
          schema:
            type: string
      responses:
        '200':
          description: Forecast payload.
          content:
            application/json:
              schema:
                type: object
                properties:
                  temperature:
                    type: number
        '404':
          description: Unknown location.
          content:
            text/html:
              schema:
                type: string
`

func TestExtractWeatherOperation(t *testing.T) {
	model := buildModel(t, weatherDoc)
	extracted := NewExtractor().Extract(model, "weather.yaml", nil)

	assert.Equal(t, "weather.yaml", extracted.Source)
	require.Len(t, extracted.Paths, 1)
	path := extracted.Paths[0]
	assert.Equal(t, "/v1/forecast", path.Path)

	op := path.Operation("GET")
	require.NotNil(t, op)
	assert.Equal(t, "getForecast", op.ID)
	assert.Equal(t, "Get the weather forecast.", op.Summary)

	// Cookie parameters are not extracted.
	require.Len(t, op.Parameters, 3)

	latitude := op.Parameters[0]
	assert.Equal(t, "latitude", latitude.Name)
	assert.Equal(t, LocationQuery, latitude.In)
	assert.Equal(t, "number", latitude.Type)
	assert.True(t, latitude.Required)

	unit := op.Parameters[2]
	assert.Equal(t, "temperature_unit", unit.Name)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit.Enum)
	assert.Equal(t, "celsius", unit.Default)
	// Enum parameters are always required, whatever the document says.
	assert.True(t, unit.Required)

	require.Contains(t, op.Responses, "200")
	ok := op.Responses["200"]
	assert.Equal(t, ContentTypeJSON, ok.Format)
	require.NotNil(t, ok.Schema)
	assert.Equal(t, []string{"temperature"}, ok.Schema.PropertyNames())

	require.Contains(t, op.Responses, "404")
	missing := op.Responses["404"]
	assert.Equal(t, ContentTypeText, missing.Format)
	assert.Nil(t, missing.Schema)
}

const routedDoc = `openapi: 3.0.0
info:
  title: Users
  version: "1.0"
paths:
  /api/v1/users:
    get:
      operationId: listUsers
      responses:
        '200':
          description: ok
  /api/v1/users/{id}:
    get:
      operationId: getUser
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        '200':
          description: ok
  /internal/health:
    get:
      operationId: health
      responses:
        '200':
          description: ok
`

func TestExtractRouteFiltering(t *testing.T) {
	model := buildModel(t, routedDoc)
	e := NewExtractor()

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "no filters keeps everything",
			patterns: nil,
			want:     []string{"/api/v1/users", "/api/v1/users/{id}", "/internal/health"},
		},
		{
			name:     "prefix match includes subpaths",
			patterns: []string{"/api/v1/users"},
			want:     []string{"/api/v1/users", "/api/v1/users/{id}"},
		},
		{
			name:     "explicit anchor forces exact match",
			patterns: []string{"/api/v1/users$"},
			want:     []string{"/api/v1/users"},
		},
		{
			name:     "multiple patterns union",
			patterns: []string{"/api/v1/users$", "/internal"},
			want:     []string{"/api/v1/users", "/internal/health"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes, err := CompileRoutes(tt.patterns)
			require.NoError(t, err)
			extracted := e.Extract(model, "users.yaml", routes)
			var got []string
			for _, p := range extracted.Paths {
				got = append(got, p.Path)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileRoutesInvalidPattern(t *testing.T) {
	_, err := CompileRoutes([]string{"/ok", "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid route pattern")
}

const customersDoc = `openapi: 3.0.0
info:
  title: Customers
  version: "1.0"
paths:
  /v1/customers:
    post:
      operationId: createCustomer
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
          application/x-www-form-urlencoded:
            schema:
              type: object
              properties:
                name:
                  type: string
                  description: Customer name.
                email:
                  type: string
            encoding:
              metadata:
                style: deepObject
                explode: true
      responses:
        '200':
          description: ok
  /apod:
    get:
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                type: object
`

func TestExtractRequestBodyPrefersForm(t *testing.T) {
	model := buildModel(t, customersDoc)
	extracted := NewExtractor().Extract(model, "customers.yaml", nil)

	require.Len(t, extracted.Paths, 2)
	op := extracted.Paths[0].Operation("POST")
	require.NotNil(t, op)
	require.NotNil(t, op.RequestBody)

	body := op.RequestBody
	assert.Equal(t, ContentTypeForm, body.ContentType)
	assert.True(t, body.Required)
	require.NotNil(t, body.Schema)
	assert.Equal(t, []string{"name", "email"}, body.Schema.PropertyNames())
	assert.Equal(t, "Customer name.", body.Schema.Properties[0].Description)

	require.Contains(t, body.Encoding, "metadata")
	enc := body.Encoding["metadata"]
	assert.Equal(t, "deepObject", enc.Style)
	require.NotNil(t, enc.Explode)
	assert.True(t, *enc.Explode)
}

func TestExtractOperationIDFallsBackToPath(t *testing.T) {
	model := buildModel(t, customersDoc)
	extracted := NewExtractor().Extract(model, "customers.yaml", nil)

	op := extracted.Paths[1].Operation("GET")
	require.NotNil(t, op)
	assert.Equal(t, "/apod", op.ID)
}

func TestExtractUnionParameter(t *testing.T) {
	model := buildModel(t, `openapi: 3.0.0
info:
  title: Search
  version: "1.0"
paths:
  /search:
    get:
      operationId: search
      parameters:
        - name: cursor
          in: query
          schema:
            anyOf:
              - type: string
              - type: integer
      responses:
        '200':
          description: ok
`)
	extracted := NewExtractor().Extract(model, "search.yaml", nil)
	op := extracted.Paths[0].Operation("GET")
	require.NotNil(t, op)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, []string{"string", "integer"}, op.Parameters[0].Types)
	assert.Empty(t, op.Parameters[0].Type)
}
