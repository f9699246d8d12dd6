// Package auth resolves API keys to caller identities.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/codewheel/toolgate/internal/policy"
)

var (
	ErrMissingAPIKey = errors.New("missing authorization header")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Identity is an authenticated caller with its granted scopes and category
// permissions.
type Identity struct {
	CallerID string
	Name     string
	Scopes   policy.ScopeSet
	Grants   policy.Grants
}

// Authenticator resolves an API key to a caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*Identity, error)
}

// ExtractBearer pulls the API key out of an Authorization header value.
// RFC 6750: the "Bearer" scheme is case-insensitive.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAPIKey
	}
	token := header
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, "tgk_") {
		return "", ErrInvalidAPIKey
	}
	return token, nil
}

// StaticAuthenticator grants a fixed identity to any well-formed key. For
// local development only; no database lookup.
type StaticAuthenticator struct {
	identity Identity
}

// NewStaticAuthenticator creates an authenticator that returns the given
// identity for every well-formed key.
func NewStaticAuthenticator(id Identity) *StaticAuthenticator {
	return &StaticAuthenticator{identity: id}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, apiKey string) (*Identity, error) {
	if !strings.HasPrefix(apiKey, "tgk_") {
		return nil, ErrInvalidAPIKey
	}
	id := a.identity
	return &id, nil
}
