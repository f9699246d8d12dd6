package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/codewheel/toolgate/internal/policy"
	"github.com/codewheel/toolgate/internal/store"
)

// CallerStore abstracts the caller lookup for testability.
type CallerStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*store.Caller, error)
}

// PostgresAuthenticator validates API keys against the callers table.
// A prefix index narrows candidates before the bcrypt compare, and results
// are cached with stale-while-revalidate semantics.
type PostgresAuthenticator struct {
	store  CallerStore
	cache  *Cache
	logger *zap.Logger
}

// NewPostgresAuthenticator creates an authenticator over the caller store.
// A zero cacheTTL defaults to 30s.
func NewPostgresAuthenticator(cs CallerStore, cacheTTL time.Duration, logger *zap.Logger) *PostgresAuthenticator {
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  cs,
		cache:  NewCache(cacheTTL),
		logger: logger,
	}
}

func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*Identity, error) {
	cached := a.cache.Get(apiKey)
	if cached.Hit {
		if cached.NeedsRefresh {
			go a.refreshInBackground(apiKey)
		}
		return cached.Identity, nil
	}

	id, err := a.authenticateFromDB(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	a.cache.Set(apiKey, id)
	return id, nil
}

// Invalidate drops the cache entries for a caller's key. Called after key
// rotation or caller deletion so revocation takes effect within one lookup.
func (a *PostgresAuthenticator) Invalidate(apiKey string) {
	a.cache.Delete(apiKey)
}

func (a *PostgresAuthenticator) authenticateFromDB(ctx context.Context, apiKey string) (*Identity, error) {
	if len(apiKey) < 8 {
		return nil, ErrInvalidAPIKey
	}
	prefix := apiKey[:8]

	caller, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("authenticateFromDB: %w", err)
	}
	if caller == nil {
		return nil, ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(caller.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	scopes := make([]policy.Scope, 0, len(caller.Scopes))
	for _, s := range caller.Scopes {
		scopes = append(scopes, policy.Scope(s))
	}

	return &Identity{
		CallerID: caller.ID,
		Name:     caller.Name,
		Scopes:   policy.NewScopeSet(scopes...),
		Grants:   policy.NewGrants(caller.Grants...),
	}, nil
}

func (a *PostgresAuthenticator) refreshInBackground(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := a.authenticateFromDB(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.Delete(apiKey)
		return
	}
	a.cache.Set(apiKey, id)
}
