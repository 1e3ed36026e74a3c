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
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/mcpgate/mcpgate/pkg/proxy"
	"github.com/mcpgate/mcpgate/pkg/spec"
	"github.com/mcpgate/mcpgate/pkg/tools"
)

// Manager owns the gateway state: one compiled namespace per configured
// upstream. Reload builds a complete replacement state before swapping it in
// under the lock, so requests always see either the old state or the new one,
// never a half-built mix. A failed reload keeps the previous state serving.
type Manager struct {
	ConfigPath string
	Version    string

	mu        sync.RWMutex
	current   *state
	validator *BearerValidator
}

type state struct {
	config     *Config
	order      []string
	namespaces map[string]*namespace
}

type namespace struct {
	config  UpstreamConfig
	tools   []tools.Tool
	mcp     *mcpserver.MCPServer
	handler http.Handler
}

// NewManager returns a Manager for the given servers.yaml path.
func NewManager(configPath string) *Manager {
	return &Manager{ConfigPath: configPath, Version: "dev"}
}

// Reload re-reads the config, loads and compiles every upstream, and swaps
// the new state in atomically. Any failure leaves the running state intact.
func (m *Manager) Reload(ctx context.Context) error {
	config, err := LoadConfig(m.ConfigPath)
	if err != nil {
		return err
	}

	loader := &spec.CachedLoader{
		Loader: spec.NewLoader(),
		Store:  spec.NewFileStore(config.CacheDir),
	}

	next := &state{config: config, namespaces: make(map[string]*namespace)}
	for _, upstream := range config.Servers {
		ns, err := m.buildNamespace(ctx, loader, config, upstream)
		if err != nil {
			return fmt.Errorf("namespace %q: %w", upstream.Namespace, err)
		}
		next.namespaces[upstream.Namespace] = ns
		next.order = append(next.order, upstream.Namespace)
	}

	var validator *BearerValidator
	if config.Auth != nil && config.Auth.Enabled {
		validator, err = NewBearerValidator(config.Auth)
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	old := m.validator
	m.current = next
	m.validator = validator
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	total := 0
	for _, ns := range next.namespaces {
		total += len(ns.tools)
	}
	log.Info().Int("namespaces", len(next.order)).Int("tools", total).
		Msg("gateway state loaded")
	return nil
}

func (m *Manager) buildNamespace(ctx context.Context, loader *spec.CachedLoader, config *Config, upstream UpstreamConfig) (*namespace, error) {
	resolved, err := loader.Load(ctx, upstream.URL, upstream.Routes, config.UseCache())
	if err != nil {
		return nil, err
	}

	excluded := make([]string, 0, len(upstream.ForwardQueryParams))
	for param := range upstream.ForwardQueryParams {
		excluded = append(excluded, param)
	}
	sort.Strings(excluded)
	compiled := tools.NewCompiler(excluded...).Compile(resolved)

	p := &proxy.Proxy{
		BaseURL:            upstream.BaseURL,
		ForwardHeaders:     upstream.ForwardHeaders,
		ForwardQueryParams: upstream.ForwardQueryParams,
		Timeout:            time.Duration(upstream.TimeoutSeconds) * time.Second,
	}
	if upstream.Record && config.RecordDir != "" {
		p.Recorder = proxy.NewRecorder(config.RecordDir, upstream.Namespace)
	}

	name := upstream.Name
	if name == "" {
		name = upstream.Namespace
	}
	mcpSrv := mcpserver.NewMCPServer(name, m.Version, mcpserver.WithToolCapabilities(true))
	for _, t := range compiled {
		mcpSrv.AddTool(toMCPTool(t), proxy.NewToolHandler(t, p))
		log.Debug().Str("namespace", upstream.Namespace).Str("tool", t.Name).
			Str("method", t.Method).Str("path", t.Path).Msg("registered tool")
	}

	handler := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(proxy.WithIncomingHeaders),
	)
	return &namespace{
		config:  upstream,
		tools:   compiled,
		mcp:     mcpSrv,
		handler: handler,
	}, nil
}

// toMCPTool renders a compiled tool as an MCP tool declaration.
func toMCPTool(t tools.Tool) mcp.Tool {
	properties := make(map[string]any)
	var required []string
	for _, p := range t.Parameters() {
		schema := map[string]any{
			"type":        jsonType(p.Type),
			"description": p.Description,
		}
		if p.Default != nil {
			schema["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			schema["enum"] = p.Enum
		}
		properties[p.Name] = schema
		if p.Required {
			required = append(required, p.Name)
		}
	}

	annotations := mcp.ToolAnnotation{Title: t.Name}
	switch t.Method {
	case http.MethodGet:
		annotations.ReadOnlyHint = boolPtr(true)
		annotations.IdempotentHint = boolPtr(true)
	case http.MethodDelete:
		annotations.DestructiveHint = boolPtr(true)
	case http.MethodPut:
		annotations.IdempotentHint = boolPtr(true)
	case http.MethodPost:
		annotations.IdempotentHint = boolPtr(false)
	}

	return mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
		Annotations: annotations,
	}
}

// jsonType maps the tool type vocabulary onto JSON Schema types. Unions
// surface as strings; the description carries the branch detail.
func jsonType(toolType string) string {
	if strings.HasPrefix(toolType, "list[") {
		return "array"
	}
	switch toolType {
	case "integer":
		return "integer"
	case "float":
		return "number"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

func boolPtr(v bool) *bool { return &v }

// Namespaces returns the configured namespaces in config order.
func (m *Manager) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return append([]string(nil), m.current.order...)
}

// Tools returns the compiled tools of one namespace.
func (m *Manager) Tools(name string) ([]tools.Tool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, false
	}
	ns, ok := m.current.namespaces[name]
	if !ok {
		return nil, false
	}
	return ns.tools, true
}

// ServeStdio runs one namespace's MCP server over stdio, blocking until the
// stream closes.
func (m *Manager) ServeStdio(name string) error {
	m.mu.RLock()
	var srv *mcpserver.MCPServer
	if m.current != nil {
		if ns, ok := m.current.namespaces[name]; ok {
			srv = ns.mcp
		}
	}
	m.mu.RUnlock()
	if srv == nil {
		return fmt.Errorf("unknown namespace %q", name)
	}
	log.Info().Str("namespace", name).Msg("serving MCP over stdio")
	return mcpserver.ServeStdio(srv)
}

// Serve runs the HTTP transport until ctx is canceled.
func (m *Manager) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: m}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving MCP over HTTP")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
