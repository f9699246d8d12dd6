package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/codewheel/toolgate/internal/auth"
	"github.com/codewheel/toolgate/internal/policy"
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const identityCtxKey contextKey = iota

// identityFromContext extracts the authenticated caller from the request context.
func identityFromContext(ctx context.Context) *auth.Identity {
	v, _ := ctx.Value(identityCtxKey).(*auth.Identity)
	return v
}

// ScopeHeader lets a caller narrow its scopes for one request. Only honored
// when access.trust_scope_header is enabled; never widens.
const ScopeHeader = "X-Toolgate-Scope"

// authMiddleware validates Bearer tgk_ tokens, resolves the effective scope
// set, and injects the identity into the request context.
func (d *Dependencies) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey, err := auth.ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Missing or invalid Authorization header"})
			return
		}

		id, err := d.Auth.Authenticate(r.Context(), apiKey)
		if err != nil {
			d.Logger.Warn("auth failed", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid API key"})
			return
		}

		settings := d.Config.Current()

		effective := *id
		if len(effective.Scopes) == 0 {
			effective.Scopes = settings.DefaultScopeSet()
		}
		if settings.Access.TrustScopeHeader {
			if raw := r.Header.Get(ScopeHeader); raw != "" {
				// A header that parses to nothing is ignored rather than
				// locking the caller out of every scope.
				if requested := policy.ParseScopes(raw); len(requested) > 0 {
					effective.Scopes = effective.Scopes.Intersect(requested)
				}
			}
		}

		ctx := context.WithValue(r.Context(), identityCtxKey, &effective)
		next(w, r.WithContext(ctx))
	}
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+ScopeHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
