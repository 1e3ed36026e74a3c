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

// Package proxy forwards compiled tool invocations to the upstream HTTP API
// and renders the response for the MCP client.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// DefaultTimeout bounds one upstream call when the proxy has no explicit
// timeout configured.
const DefaultTimeout = 30 * time.Second

// Proxy forwards requests to one upstream base URL. ForwardHeaders are
// incoming header names copied upstream verbatim; ForwardQueryParams maps an
// upstream query parameter name to the incoming header it is filled from.
// A Proxy is immutable after construction and safe for concurrent use; each
// call gets its own client so a hung upstream never pins shared state.
type Proxy struct {
	BaseURL            string
	ForwardHeaders     []string
	ForwardQueryParams map[string]string
	Timeout            time.Duration

	// ClientBuilder overrides per-call client construction, mainly for tests.
	ClientBuilder func(timeout time.Duration) *http.Client

	// Recorder, when set, persists every exchange as a cassette.
	Recorder *Recorder
}

// Request is one upstream call, already split into its wire components.
type Request struct {
	Tool        string
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	ContentType string
	Body        []byte

	// Incoming carries the headers of the originating MCP HTTP request, the
	// source for header and query-param forwarding.
	Incoming http.Header
}

// Result is the upstream response with its body fully read.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Do performs one upstream call. The response body is always drained and
// closed, and the per-call client is released on every exit path.
func (p *Proxy) Do(ctx context.Context, req *Request) (*Result, error) {
	target, err := p.buildURL(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	for _, name := range p.ForwardHeaders {
		if v := req.Incoming.Get(name); v != "" {
			httpReq.Header.Set(name, v)
		}
	}

	client := p.newClient()
	defer client.CloseIdleConnections()

	started := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close upstream response body")
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	result := &Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: string(data)}
	log.Debug().Str("tool", req.Tool).Str("method", req.Method).Str("url", target).
		Int("status", resp.StatusCode).Dur("elapsed", time.Since(started)).
		Msg("proxied upstream call")

	if p.Recorder != nil {
		if err := p.Recorder.Record(req, target, result); err != nil {
			log.Warn().Err(err).Str("tool", req.Tool).Msg("failed to record cassette")
		}
	}
	return result, nil
}

func (p *Proxy) buildURL(req *Request) (string, error) {
	base := strings.TrimRight(p.BaseURL, "/")
	if base == "" {
		return "", fmt.Errorf("proxy has no base URL")
	}
	target := base + req.Path

	query := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for param, header := range p.ForwardQueryParams {
		if v := req.Incoming.Get(header); v != "" {
			query.Set(param, v)
		}
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target, nil
}

func (p *Proxy) newClient() *http.Client {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if p.ClientBuilder != nil {
		return p.ClientBuilder(timeout)
	}
	return &http.Client{Timeout: timeout}
}
