// Package api exposes the gateway over HTTP: tool execution, discovery,
// caller status, administration, and the audit query surface.
package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/codewheel/toolgate/internal/audit"
	"github.com/codewheel/toolgate/internal/auth"
	"github.com/codewheel/toolgate/internal/config"
	"github.com/codewheel/toolgate/internal/gateway"
	"github.com/codewheel/toolgate/internal/ratelimit"
	"github.com/codewheel/toolgate/internal/registry"
	"github.com/codewheel/toolgate/internal/store"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Gateway  *gateway.Gateway
	Registry *registry.Registry
	Limiter  *ratelimit.Limiter
	Config   *config.Manager
	Auth     auth.Authenticator
	Store    *store.Store  // nil in dev mode (no Postgres)
	Reader   *audit.Reader // nil if ClickHouse unavailable
	Metrics  http.Handler  // nil disables /metrics
	Logger   *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Execution surface (auth required via Bearer tgk_ token)
	mux.HandleFunc("POST /v1/tools/{tool}/execute", deps.authMiddleware(deps.handleExecute))
	mux.HandleFunc("GET /v1/tools", deps.authMiddleware(deps.handleListTools))
	mux.HandleFunc("GET /v1/status", deps.authMiddleware(deps.handleStatus))

	// Caller administration (operator network, no caller auth)
	mux.HandleFunc("POST /v1/admin/callers", deps.handleCreateCaller)
	mux.HandleFunc("GET /v1/admin/callers", deps.handleListCallers)
	mux.HandleFunc("GET /v1/admin/callers/{id}", deps.handleGetCaller)
	mux.HandleFunc("PATCH /v1/admin/callers/{id}", deps.handleUpdateCaller)
	mux.HandleFunc("DELETE /v1/admin/callers/{id}", deps.handleDeleteCaller)
	mux.HandleFunc("POST /v1/admin/callers/{id}/rotate-key", deps.handleRotateKey)

	// Settings administration
	mux.HandleFunc("GET /v1/admin/settings", deps.handleGetSettings)
	mux.HandleFunc("PUT /v1/admin/settings", deps.handleReplaceSettings)
	mux.HandleFunc("POST /v1/admin/rate-limits/{caller}/reset", deps.handleResetRateLimits)

	// Audit query surface
	mux.HandleFunc("GET /v1/audit/events", deps.handleListAuditEvents)
	mux.HandleFunc("GET /v1/audit/summary", deps.handleAuditSummary)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
