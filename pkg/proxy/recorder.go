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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Cassette is one recorded request/response exchange, serialized as a single
// JSON file for offline inspection and replay tooling.
type Cassette struct {
	ID         string      `json:"id"`
	RecordedAt time.Time   `json:"recordedAt"`
	Namespace  string      `json:"namespace,omitempty"`
	Tool       string      `json:"tool"`
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	Query      url.Values  `json:"query,omitempty"`
	Body       string      `json:"body,omitempty"`
	Status     int         `json:"status"`
	Headers    http.Header `json:"responseHeaders,omitempty"`
	Response   string      `json:"response"`
}

// Recorder writes cassettes under Dir/Namespace, one file per exchange.
// Disabled recording is represented by a nil Recorder on the Proxy.
type Recorder struct {
	Dir       string
	Namespace string
}

// NewRecorder returns a Recorder rooted at dir for the given namespace.
func NewRecorder(dir, namespace string) *Recorder {
	return &Recorder{Dir: dir, Namespace: namespace}
}

// Record persists one exchange. File names combine the tool name, a
// timestamp and a UUID suffix so concurrent invocations never collide.
func (r *Recorder) Record(req *Request, target string, res *Result) error {
	cassette := Cassette{
		ID:         uuid.NewString(),
		RecordedAt: time.Now().UTC(),
		Namespace:  r.Namespace,
		Tool:       req.Tool,
		Method:     req.Method,
		URL:        target,
		Query:      req.Query,
		Body:       string(req.Body),
		Status:     res.StatusCode,
		Headers:    res.Header,
		Response:   res.Body,
	}

	dir := filepath.Join(r.Dir, r.Namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cassette directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%s_%s.json",
		cassette.Tool, cassette.RecordedAt.Format("20060102T150405"), cassette.ID)
	data, err := json.MarshalIndent(cassette, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cassette: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cassette: %w", err)
	}
	return nil
}
