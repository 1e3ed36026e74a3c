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
	"encoding/json"
	"net/http"
	"strings"

	"github.com/phuslu/log"

	"github.com/mcpgate/mcpgate/pkg/tools"
)

// ServeHTTP guards the whole transport with the bearer middleware when auth
// is configured, then routes to the inspection endpoints or a namespace.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	st := m.current
	validator := m.validator
	m.mu.RUnlock()

	if st == nil {
		http.Error(w, "gateway not ready", http.StatusServiceUnavailable)
		return
	}

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.route(w, r, st)
	})
	if validator != nil {
		handler = validator.Middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// route dispatches on the first path segment: "tools" serves the inspection
// endpoints, anything else addresses a namespace's MCP transport.
func (m *Manager) route(w http.ResponseWriter, r *http.Request, st *state) {
	head, rest := shiftPath(r.URL.Path)
	switch {
	case head == "tools":
		m.handleTools(w, r, st, rest)
	default:
		ns, ok := st.namespaces[head]
		if !ok {
			http.Error(w, "unknown namespace", http.StatusNotFound)
			return
		}
		http.StripPrefix("/"+head, ns.handler).ServeHTTP(w, r)
	}
}

// toolSummary is the /tools listing shape, one entry per compiled tool.
type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Method      string `json:"method"`
	Path        string `json:"path"`
}

// handleTools serves GET /tools (every namespace, summarized) and
// GET /tools/{namespace} (one namespace, full descriptors).
func (m *Manager) handleTools(w http.ResponseWriter, r *http.Request, st *state, rest string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, _ := shiftPath(rest)
	if name == "" {
		listing := make(map[string][]toolSummary, len(st.order))
		for _, nsName := range st.order {
			ns := st.namespaces[nsName]
			summaries := make([]toolSummary, 0, len(ns.tools))
			for _, t := range ns.tools {
				summaries = append(summaries, toolSummary{
					Name:        t.Name,
					Description: t.Description,
					Method:      t.Method,
					Path:        t.Path,
				})
			}
			listing[nsName] = summaries
		}
		writeJSON(w, listing)
		return
	}

	ns, ok := st.namespaces[name]
	if !ok {
		http.Error(w, "unknown namespace", http.StatusNotFound)
		return
	}
	full := ns.tools
	if full == nil {
		full = []tools.Tool{}
	}
	writeJSON(w, full)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// shiftPath splits the first segment off a URL path.
func shiftPath(p string) (head, rest string) {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i], p[i:]
	}
	return p, ""
}
