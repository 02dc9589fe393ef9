// Package auth resolves bearer tokens to scoped principals.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

const (
	ScopeAll          = "*"
	ScopeScansRead    = "scans:ro"
	ScopeScansWrite   = "scans:rw"
	ScopeJanitorRead  = "janitor:ro"
	ScopeJanitorWrite = "janitor:rw"
	ScopeEventsRead   = "events:ro"
)

// Resources whose ":rw" scope implies ":ro".
var scopedResources = []string{"scans", "janitor", "events"}

var (
	ErrMissingHeader = errors.New("missing Authorization header")
	ErrBadScheme     = errors.New("invalid Authorization header format")
	ErrEmptyToken    = errors.New("missing API key")
)

// TokenConfig is a bearer token with a set of scopes.
type TokenConfig struct {
	Token  string
	Scopes []string
}

type Principal struct {
	Token  string
	Scopes map[string]struct{}
}

// HasAny reports whether p holds one of required, or the admin scope.
// No requirement always passes.
func (p Principal) HasAny(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if _, ok := p.Scopes[ScopeAll]; ok {
		return true
	}
	for _, s := range required {
		if _, ok := p.Scopes[s]; ok {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingHeader
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", ErrBadScheme
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

type credential struct {
	token  []byte
	scopes map[string]struct{}
}

// Authorizer matches presented tokens against the configured credentials.
// Scopes are normalized once at construction.
type Authorizer struct {
	creds []credential
}

// NewAuthorizer builds an Authorizer. A non-empty apiKey is an admin
// credential with scope "*". Empty tokens are ignored.
func NewAuthorizer(apiKey string, tokens []TokenConfig) *Authorizer {
	a := &Authorizer{}
	if apiKey != "" {
		a.creds = append(a.creds, credential{
			token:  []byte(apiKey),
			scopes: map[string]struct{}{ScopeAll: {}},
		})
	}
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		a.creds = append(a.creds, credential{
			token:  []byte(t.Token),
			scopes: normalizeScopes(t.Scopes),
		})
	}
	return a
}

// Authenticate returns the principal for presented, checking every
// credential in constant time.
func (a *Authorizer) Authenticate(presented string) (Principal, bool) {
	if presented == "" {
		return Principal{}, false
	}
	p := []byte(presented)
	for _, c := range a.creds {
		if subtle.ConstantTimeCompare(p, c.token) == 1 {
			return Principal{Token: presented, Scopes: c.scopes}, true
		}
	}
	return Principal{}, false
}

func normalizeScopes(scopes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			out[s] = struct{}{}
		}
	}
	for _, res := range scopedResources {
		if _, ok := out[res+":rw"]; ok {
			out[res+":ro"] = struct{}{}
		}
	}
	return out
}
