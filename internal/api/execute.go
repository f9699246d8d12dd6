package api

import (
	"net/http"
	"strconv"

	"github.com/codewheel/toolgate/internal/gateway"
	"github.com/codewheel/toolgate/internal/policy"
	"github.com/codewheel/toolgate/internal/result"
)

// handleExecute runs one tool call through the gateway pipeline.
func (d *Dependencies) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	toolID := r.PathValue("tool")

	var req ExecuteRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, result.CanonicalResult{
				Outcome:   result.OutcomeFailure,
				Error:     "Request body is not valid JSON.",
				ErrorCode: policy.CodeValidationError,
			})
			return
		}
	}

	res := d.Gateway.Execute(r.Context(), gateway.Request{
		ToolID:    toolID,
		CallerID:  id.CallerID,
		Scopes:    id.Scopes,
		Grants:    id.Grants,
		Arguments: req.Arguments,
	})

	if res.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
	}
	writeJSON(w, statusFor(res), res)
}

// statusFor maps a canonical result to an HTTP status. The body carries the
// denial code either way; the status is a convenience for HTTP clients.
func statusFor(res result.CanonicalResult) int {
	switch res.Outcome {
	case result.OutcomeSuccess:
		return http.StatusOK
	case result.OutcomeDenied:
		if res.ErrorCode == policy.CodeRateLimitExceeded {
			return http.StatusTooManyRequests
		}
		return http.StatusForbidden
	default:
		if res.ErrorCode == policy.CodeValidationError {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// handleListTools returns the discovery listing, optionally filtered by the
// q query parameter.
func (d *Dependencies) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := d.Registry.List(r.URL.Query().Get("q"))

	out := make([]ToolResp, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolResp{
			ID:          t.Descriptor.ID,
			Category:    t.Descriptor.Category,
			Operation:   string(t.Descriptor.Operation),
			WriteKind:   string(t.Descriptor.WriteKind),
			Description: t.Description,
			HasSchema:   t.HasSchema(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// handleStatus reports the calling identity's effective scopes, the global
// mode flags, and current rate-limit usage.
func (d *Dependencies) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	settings := d.Config.Current()

	scopes := make([]string, 0, len(id.Scopes))
	for _, s := range id.Scopes.Slice() {
		scopes = append(scopes, string(s))
	}

	writeJSON(w, http.StatusOK, StatusResp{
		CallerID:       id.CallerID,
		Scopes:         scopes,
		ReadOnlyMode:   settings.Access.ReadOnlyMode,
		ConfigOnlyMode: settings.Access.ConfigOnlyMode,
		AuditLogging:   settings.Access.AuditLogging,
		RateLimits:     d.Limiter.Status(id.CallerID),
	})
}
