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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpgate/mcpgate/pkg/tools"
)

const managerWeatherDoc = `openapi: 3.0.0
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
      responses:
        '200':
          description: ok
  /v1/history:
    get:
      operationId: getHistory
      responses:
        '200':
          description: ok
`

// newTestManager writes a document and matching config into a temp dir and
// returns a loaded Manager plus the config path.
func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	docPath := filepath.Join(dir, "weather.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte(managerWeatherDoc), 0o644))

	configPath := filepath.Join(dir, "servers.yaml")
	config := fmt.Sprintf(`
servers:
  - namespace: weather
    name: Weather API
    url: %s
    base_url: https://api.open-meteo.com
cache: false
`, docPath)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	m := NewManager(configPath)
	require.NoError(t, m.Reload(context.Background()))
	return m, configPath
}

func TestManagerReloadBuildsNamespaces(t *testing.T) {
	m, _ := newTestManager(t)

	assert.Equal(t, []string{"weather"}, m.Namespaces())
	compiled, ok := m.Tools("weather")
	require.True(t, ok)
	require.Len(t, compiled, 2)
	assert.Equal(t, "get_forecast", compiled[0].Name)
	assert.Equal(t, "get_history", compiled[1].Name)

	_, ok = m.Tools("nope")
	assert.False(t, ok)
}

func TestManagerFailedReloadKeepsState(t *testing.T) {
	m, configPath := newTestManager(t)

	require.NoError(t, os.WriteFile(configPath, []byte("servers: []\n"), 0o644))
	err := m.Reload(context.Background())
	require.Error(t, err)

	// The previous state keeps serving.
	compiled, ok := m.Tools("weather")
	require.True(t, ok)
	assert.Len(t, compiled, 2)
}

func TestManagerReloadSwapsTools(t *testing.T) {
	m, configPath := newTestManager(t)

	dir := t.TempDir()
	docPath := filepath.Join(dir, "billing.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte(`openapi: 3.0.0
info:
  title: Billing
  version: "1.0"
paths:
  /v1/invoices:
    get:
      operationId: listInvoices
      responses:
        '200':
          description: ok
`), 0o644))
	config := fmt.Sprintf(`
servers:
  - namespace: billing
    url: %s
    base_url: https://billing.example.com
cache: false
`, docPath)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	require.NoError(t, m.Reload(context.Background()))
	assert.Equal(t, []string{"billing"}, m.Namespaces())
	_, ok := m.Tools("weather")
	assert.False(t, ok)
}

func TestManagerToolsEndpoint(t *testing.T) {
	m, _ := newTestManager(t)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var listing map[string][]toolSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Contains(t, listing, "weather")
	require.Len(t, listing["weather"], 2)
	assert.Equal(t, "get_forecast", listing["weather"][0].Name)
	assert.Equal(t, "GET", listing["weather"][0].Method)
	assert.Equal(t, "/v1/forecast", listing["weather"][0].Path)
}

func TestManagerNamespaceToolsEndpoint(t *testing.T) {
	m, _ := newTestManager(t)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools/weather", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var full []tools.Tool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	require.Len(t, full, 2)
	assert.Equal(t, "get_forecast", full[0].Name)
	require.Len(t, full[0].QueryParams, 1)
	assert.Equal(t, "latitude", full[0].QueryParams[0].Name)
	assert.True(t, full[0].QueryParams[0].Required)
}

func TestManagerUnknownRoutes(t *testing.T) {
	m, _ := newTestManager(t)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown/mcp", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestManagerServeHTTPBearerAuth(t *testing.T) {
	key, publicPEM := generateKeyPair(t)

	dir := t.TempDir()
	docPath := filepath.Join(dir, "weather.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte(managerWeatherDoc), 0o644))

	configPath := filepath.Join(dir, "servers.yaml")
	config := fmt.Sprintf(`
servers:
  - namespace: weather
    url: %s
    base_url: https://api.open-meteo.com
cache: false
auth:
  enabled: true
  public_key: |
%s
`, docPath, indentLines(publicPEM, "    "))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	m := NewManager(configPath)
	require.NoError(t, m.Reload(context.Background()))

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := signToken(t, key, TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func indentLines(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func TestManagerNotReady(t *testing.T) {
	m := NewManager("unused.yaml")
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestManagerServeStdioUnknownNamespace(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.ServeStdio("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown namespace")
}

func TestJSONType(t *testing.T) {
	assert.Equal(t, "integer", jsonType("integer"))
	assert.Equal(t, "number", jsonType("float"))
	assert.Equal(t, "boolean", jsonType("bool"))
	assert.Equal(t, "string", jsonType("string"))
	assert.Equal(t, "array", jsonType("list[string]"))
	assert.Equal(t, "string", jsonType("string | integer"))
}

func TestToMCPTool(t *testing.T) {
	tool := tools.Tool{
		Name:        "get_forecast",
		Description: "Get the weather forecast.",
		Method:      http.MethodGet,
		Path:        "/v1/forecast",
		QueryParams: []tools.ToolParameter{
			{Name: "latitude", Type: "float", Required: true},
			{Name: "temperature_unit", Type: "string", Default: "celsius",
				Enum: []any{"celsius", "fahrenheit"}},
		},
	}

	declared := toMCPTool(tool)
	assert.Equal(t, "get_forecast", declared.Name)
	assert.Equal(t, []string{"latitude"}, declared.InputSchema.Required)

	latitude, ok := declared.InputSchema.Properties["latitude"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", latitude["type"])

	unit, ok := declared.InputSchema.Properties["temperature_unit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "celsius", unit["default"])
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit["enum"])

	require.NotNil(t, declared.Annotations.ReadOnlyHint)
	assert.True(t, *declared.Annotations.ReadOnlyHint)
}
