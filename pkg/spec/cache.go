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
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phuslu/log"
)

// Store is the persistence backend for resolved specs. Implementations must
// be safe for concurrent use.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// CacheKey derives the cache identity of a (source, route filters) pair. The
// patterns are sorted first, so filter order never splits the cache.
func CacheKey(source string, routePatterns []string) string {
	patterns := append([]string(nil), routePatterns...)
	sort.Strings(patterns)
	sum := md5.Sum([]byte(source + ":" + strings.Join(patterns, ",")))
	return hex.EncodeToString(sum[:])
}

// FileStore keeps one JSON file per cache key in a directory, by default
// ~/.mcpgate/cache. The directory is created lazily on first Put.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir, falling back to the default
// cache directory when dir is empty.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	return &FileStore{Dir: dir}
}

// DefaultCacheDir returns ~/.mcpgate/cache, or a relative fallback when the
// home directory cannot be determined.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mcpgate", "cache")
	}
	return filepath.Join(home, ".mcpgate", "cache")
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

// Get returns the cached bytes for key, or ok=false on any miss or read error.
func (s *FileStore) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put writes data under key, creating the cache directory if needed.
func (s *FileStore) Put(key string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", s.Dir, err)
	}
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// CachedLoader wraps a Loader with a Store. A hit skips fetching and
// resolution entirely; a miss resolves and persists. Cache write failures are
// logged and otherwise ignored, load failures always propagate.
type CachedLoader struct {
	Loader *Loader
	Store  Store
}

// NewCachedLoader returns a CachedLoader over the default file store.
func NewCachedLoader() *CachedLoader {
	return &CachedLoader{Loader: NewLoader(), Store: NewFileStore("")}
}

// Load returns the Spec for (source, routePatterns). With useCache false both
// the read and the write are bypassed.
func (c *CachedLoader) Load(ctx context.Context, source string, routePatterns []string, useCache bool) (*Spec, error) {
	key := CacheKey(source, routePatterns)

	if useCache && c.Store != nil {
		if data, ok := c.Store.Get(key); ok {
			var cached Spec
			if err := json.Unmarshal(data, &cached); err == nil {
				log.Debug().Str("source", source).Str("key", key).Msg("spec cache hit")
				return &cached, nil
			}
			// Corrupt entry: fall through and rebuild it.
			log.Warn().Str("key", key).Msg("discarding unreadable spec cache entry")
		}
	}

	resolved, err := c.Loader.Load(ctx, source, routePatterns)
	if err != nil {
		return nil, err
	}

	if useCache && c.Store != nil {
		data, err := json.Marshal(resolved)
		if err == nil {
			err = c.Store.Put(key, data)
		}
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to persist spec cache entry")
		}
	}
	return resolved, nil
}
