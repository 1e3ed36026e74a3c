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

// Package server hosts the gateway: one MCP server per configured namespace,
// HTTP and stdio transports, inspection endpoints and config hot-reload.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UpstreamConfig configures one namespace: where its OpenAPI document lives,
// where tool calls are proxied to, and which paths become tools.
type UpstreamConfig struct {
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name,omitempty"`

	// URL locates the OpenAPI document: a file path or an http(s) URL.
	URL string `yaml:"url"`

	// BaseURL is the upstream API root tool calls are sent to.
	BaseURL string `yaml:"base_url"`

	// Routes are prefix-anchored regex filters over document paths. Empty
	// means every path.
	Routes []string `yaml:"routes,omitempty"`

	// ForwardHeaders are incoming header names copied upstream verbatim.
	ForwardHeaders []string `yaml:"forward_headers,omitempty"`

	// ForwardQueryParams maps an upstream query parameter to the incoming
	// header that fills it. Parameters named here never surface as tool
	// arguments.
	ForwardQueryParams map[string]string `yaml:"forward_query_params,omitempty"`

	TimeoutSeconds int  `yaml:"timeout_seconds,omitempty"`
	Record         bool `yaml:"record,omitempty"`
}

// Config is the servers.yaml document.
type Config struct {
	Servers []UpstreamConfig `yaml:"servers"`

	// Cache toggles the on-disk spec cache; nil means enabled.
	Cache *bool `yaml:"cache,omitempty"`

	// CacheDir overrides the default spec cache location.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// RecordDir is where cassettes are written for namespaces with
	// record: true.
	RecordDir string `yaml:"record_dir,omitempty"`

	// Auth, when enabled, guards the whole HTTP transport.
	Auth *BearerAuthConfig `yaml:"auth,omitempty"`
}

// UseCache reports whether the spec cache is enabled.
func (c *Config) UseCache() bool {
	return c.Cache == nil || *c.Cache
}

// LoadConfig reads and validates a servers.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}

// Validate rejects configs that cannot produce a working gateway.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("no servers configured")
	}
	seen := make(map[string]bool)
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Namespace == "" {
			return fmt.Errorf("server %d: namespace is required", i)
		}
		if s.Namespace == "tools" {
			return fmt.Errorf("server %d: namespace %q is reserved", i, s.Namespace)
		}
		if seen[s.Namespace] {
			return fmt.Errorf("duplicate namespace %q", s.Namespace)
		}
		seen[s.Namespace] = true
		if s.URL == "" {
			return fmt.Errorf("server %q: url is required", s.Namespace)
		}
		if s.BaseURL == "" {
			return fmt.Errorf("server %q: base_url is required", s.Namespace)
		}
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			return err
		}
	}
	return nil
}
