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
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	"github.com/phuslu/log"
)

// Loader fetches OpenAPI documents from a file path or an http(s) URL, parses
// them and hands the v3 model to the Extractor. Parse errors are fatal: a
// document that does not build yields an error, never a partial Spec.
type Loader struct {
	Client    *http.Client
	Extractor *Extractor

	// Strict turns model validation warnings into errors.
	Strict bool
}

// NewLoader returns a Loader with a 30s fetch timeout and default extractor.
func NewLoader() *Loader {
	return &Loader{
		Client:    &http.Client{Timeout: 30 * time.Second},
		Extractor: NewExtractor(),
	}
}

// Load fetches, parses and extracts one document. routePatterns filter the
// document's paths; an empty list keeps everything.
func (l *Loader) Load(ctx context.Context, source string, routePatterns []string) (*Spec, error) {
	routes, err := CompileRoutes(routePatterns)
	if err != nil {
		return nil, err
	}

	data, err := l.fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	config := datamodel.NewDocumentConfiguration()
	config.AllowFileReferences = true
	config.AllowRemoteReferences = true

	document, err := libopenapi.NewDocumentWithConfiguration(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document %s: %w", source, err)
	}

	model, buildErrs := document.BuildV3Model()
	if model == nil || (l.Strict && len(buildErrs) > 0) {
		messages := make([]string, 0, len(buildErrs))
		for _, e := range buildErrs {
			messages = append(messages, e.Error())
		}
		return nil, fmt.Errorf("failed to build OpenAPI v3 model for %s: %s",
			source, strings.Join(messages, "; "))
	}
	if len(buildErrs) > 0 {
		log.Warn().Str("source", source).Int("warnings", len(buildErrs)).
			Msg("OpenAPI model built with validation warnings")
	}

	log.Info().Str("source", source).
		Str("title", model.Model.Info.Title).
		Str("version", model.Model.Info.Version).
		Msg("loaded OpenAPI document")

	return l.Extractor.Extract(&model.Model, source, routes), nil
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", source, err)
		}
		resp, err := l.client().Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch OpenAPI document: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close response body")
			}
		}()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch OpenAPI document: %s returned %s", source, resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read OpenAPI document: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI document: %w", err)
	}
	return data, nil
}

func (l *Loader) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return http.DefaultClient
}
