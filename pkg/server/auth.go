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
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/phuslu/log"
)

// BearerAuthConfig configures optional JWT validation on the HTTP transport.
// Exactly one of JWKSUri and PublicKey must be set when enabled.
type BearerAuthConfig struct {
	Enabled        bool     `yaml:"enabled"`
	JWKSUri        string   `yaml:"jwks_uri,omitempty"`
	PublicKey      string   `yaml:"public_key,omitempty"` // RSA public key, PEM
	Algorithm      string   `yaml:"algorithm,omitempty"`
	Issuer         string   `yaml:"issuer,omitempty"`
	Audience       string   `yaml:"audience,omitempty"`
	RequiredScopes []string `yaml:"required_scopes,omitempty"`
	CacheTTL       int      `yaml:"cache_ttl,omitempty"` // JWKS refresh, seconds
}

// Validate normalizes defaults and rejects inconsistent settings.
func (c *BearerAuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSUri == "" && c.PublicKey == "" {
		return fmt.Errorf("bearer auth requires either jwks_uri or public_key")
	}
	if c.JWKSUri != "" && c.PublicKey != "" {
		return fmt.Errorf("bearer auth accepts jwks_uri or public_key, not both")
	}
	if c.Algorithm == "" {
		c.Algorithm = "RS256"
	}
	supported := []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256", "PS384", "PS512"}
	if !slices.Contains(supported, c.Algorithm) {
		return fmt.Errorf("unsupported JWT algorithm: %s", c.Algorithm)
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 300
	}
	return nil
}

// TokenClaims are the claims mcpgate inspects beyond the registered set.
type TokenClaims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// BearerValidator validates Authorization: Bearer tokens. Signature and
// registered-claim checks are delegated to golang-jwt; the only custom rule
// is required-scope membership.
type BearerValidator struct {
	config  *BearerAuthConfig
	keyFunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	parser  *jwt.Parser
}

// NewBearerValidator builds a validator from config, fetching the JWKS when
// one is configured.
func NewBearerValidator(config *BearerAuthConfig) (*BearerValidator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	v := &BearerValidator{config: config}
	if config.JWKSUri != "" {
		jwks, err := keyfunc.Get(config.JWKSUri, keyfunc.Options{
			RefreshInterval: time.Duration(config.CacheTTL) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", config.JWKSUri, err)
		}
		v.jwks = jwks
		v.keyFunc = jwks.Keyfunc
	} else {
		publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.keyFunc = func(*jwt.Token) (any, error) { return publicKey, nil }
	}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{config.Algorithm})}
	if config.Issuer != "" {
		options = append(options, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		options = append(options, jwt.WithAudience(config.Audience))
	}
	v.parser = jwt.NewParser(options...)
	return v, nil
}

// ValidateToken parses and verifies one token string.
func (v *BearerValidator) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &TokenClaims{}, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	for _, required := range v.config.RequiredScopes {
		if !slices.Contains(claims.Scopes, required) {
			return nil, fmt.Errorf("insufficient scopes: requires %s",
				strings.Join(v.config.RequiredScopes, ", "))
		}
	}
	return claims, nil
}

// Close stops background JWKS refreshing.
func (v *BearerValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Middleware rejects requests without a valid bearer token.
func (v *BearerValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := v.ValidateToken(token); err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected request")
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
