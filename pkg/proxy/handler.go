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

package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcpgate/mcpgate/pkg/spec"
	"github.com/mcpgate/mcpgate/pkg/tools"
)

type contextKey string

// headersKey carries the originating HTTP request headers through the MCP
// handler chain for header and query-param forwarding.
const headersKey contextKey = "mcpgate.incomingHeaders"

// WithIncomingHeaders stores the originating request headers on ctx. Wired
// into the MCP HTTP transport via server.WithHTTPContextFunc.
func WithIncomingHeaders(ctx context.Context, r *http.Request) context.Context {
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, headersKey, r.Header.Clone())
}

// IncomingHeaders returns the originating request headers, or an empty set on
// stdio transports.
func IncomingHeaders(ctx context.Context) http.Header {
	if h, ok := ctx.Value(headersKey).(http.Header); ok {
		return h
	}
	return http.Header{}
}

// NewToolHandler builds the MCP handler for one compiled tool. The closure
// captures the immutable Tool descriptor; per-invocation state lives entirely
// on the stack, so handlers run concurrently without locking.
func NewToolHandler(tool tools.Tool, p *Proxy) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		params := tool.Parameters()
		for _, param := range params {
			if _, ok := args[param.Name]; !ok && param.Default != nil {
				args[param.Name] = param.Default
			}
		}
		for _, param := range params {
			if !param.Required {
				continue
			}
			if v, ok := args[param.Name]; !ok || v == nil {
				return mcp.NewToolResultError(fmt.Sprintf("missing required parameter %q", param.Name)), nil
			}
		}

		req := &Request{
			Tool:     tool.Name,
			Method:   tool.Method,
			Path:     tool.Path,
			Query:    url.Values{},
			Header:   http.Header{},
			Incoming: IncomingHeaders(ctx),
		}
		body := map[string]any{}
		form := url.Values{}

		contentType := tool.ContentType()
		for _, param := range params {
			value, ok := args[param.Name]
			if !ok || value == nil {
				continue
			}
			switch {
			case param.IsBody():
				if contentType == spec.ContentTypeForm {
					form.Set(param.RequestBodyField, stringify(value))
				} else {
					assignDotted(body, param.RequestBodyField, value)
				}
			case param.In == spec.LocationPath:
				req.Path = substitutePath(req.Path, param, value)
			case param.In == spec.LocationHeader:
				req.Header.Set(param.Name, stringify(value))
			default:
				req.Query.Set(param.Name, stringify(value))
			}
		}

		switch {
		case len(form) > 0:
			req.ContentType = spec.ContentTypeForm
			req.Body = []byte(form.Encode())
		case len(body) > 0:
			encoded, err := json.Marshal(body)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to encode request body: %v", err)), nil
			}
			req.ContentType = spec.ContentTypeJSON
			req.Body = encoded
		}

		result, err := p.Do(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result.Body), nil
	}
}

// assignDotted writes value into target under a dotted path, creating
// intermediate objects as needed. "settings.limit" yields
// {"settings": {"limit": value}}.
func assignDotted(target map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := target[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[part] = next
		}
		target = next
	}
	target[parts[len(parts)-1]] = value
}

// substitutePath fills a {placeholder} path segment. The document's raw
// spelling is tried first, then the normalized snake_case name, then a
// camelCase rendering of it.
func substitutePath(path string, param tools.ToolParameter, value any) string {
	escaped := url.PathEscape(stringify(value))
	for _, candidate := range []string{param.RawName, param.Name, camelCase(param.Name)} {
		if candidate == "" {
			continue
		}
		placeholder := "{" + candidate + "}"
		if strings.Contains(path, placeholder) {
			return strings.ReplaceAll(path, placeholder, escaped)
		}
	}
	return path
}

func camelCase(snake string) string {
	parts := strings.Split(snake, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}
