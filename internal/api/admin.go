package api

import (
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/codewheel/toolgate/internal/config"
	"github.com/codewheel/toolgate/internal/store"
)

func callerResp(c *store.Caller) CallerResp {
	return CallerResp{
		ID:           c.ID,
		Name:         c.Name,
		APIKeyPrefix: c.APIKeyPrefix,
		Scopes:       c.Scopes,
		Grants:       c.Grants,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// requireStore guards the admin endpoints that need Postgres.
func (d *Dependencies) requireStore(w http.ResponseWriter) bool {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Caller administration requires a database"})
		return false
	}
	return true
}

// handleCreateCaller creates a caller and returns the plaintext key once.
func (d *Dependencies) handleCreateCaller(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}

	var req CreateCallerRequest
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name is required"})
		return
	}

	c, key, err := d.Store.CreateCaller(r.Context(), req.Name, req.Scopes, req.Grants)
	if err != nil {
		d.Logger.Error("create caller failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create caller"})
		return
	}

	writeJSON(w, http.StatusCreated, CallerWithKeyResp{CallerResp: callerResp(c), APIKey: key})
}

func (d *Dependencies) handleListCallers(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}

	callers, err := d.Store.ListCallers(r.Context())
	if err != nil {
		d.Logger.Error("list callers failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list callers"})
		return
	}

	out := make([]CallerResp, 0, len(callers))
	for _, c := range callers {
		out = append(out, callerResp(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"callers": out})
}

func (d *Dependencies) handleGetCaller(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}

	c, err := d.Store.GetCaller(r.Context(), r.PathValue("id"))
	if err != nil {
		d.Logger.Error("get caller failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get caller"})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Caller not found"})
		return
	}
	writeJSON(w, http.StatusOK, callerResp(c))
}

func (d *Dependencies) handleUpdateCaller(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}

	var req UpdateCallerRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid request body"})
		return
	}

	c, err := d.Store.UpdateCaller(r.Context(), r.PathValue("id"), store.UpdateCallerParams{
		Name:   req.Name,
		Scopes: req.Scopes,
		Grants: req.Grants,
	})
	if err != nil {
		d.Logger.Error("update caller failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update caller"})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Caller not found"})
		return
	}
	writeJSON(w, http.StatusOK, callerResp(c))
}

func (d *Dependencies) handleDeleteCaller(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}

	err := d.Store.DeleteCaller(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Caller not found"})
		return
	}
	if err != nil {
		d.Logger.Error("delete caller failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete caller"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRotateKey rotates a caller's API key and returns the plaintext once.
func (d *Dependencies) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}

	c, key, err := d.Store.RotateAPIKey(r.Context(), r.PathValue("id"))
	if err != nil {
		d.Logger.Error("rotate key failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to rotate key"})
		return
	}
	writeJSON(w, http.StatusOK, CallerWithKeyResp{CallerResp: callerResp(c), APIKey: key})
}

// handleGetSettings returns the live policy settings snapshot.
func (d *Dependencies) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, d.Config.Current())
}

// handleReplaceSettings applies new policy settings atomically and persists
// them when a database is configured.
func (d *Dependencies) handleReplaceSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := readJSON(r, &s); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid request body"})
		return
	}

	applied := d.Config.Apply(s)

	if d.Store != nil {
		if err := d.Store.SaveSettings(r.Context(), applied); err != nil {
			// The snapshot is already live; persistence failure only affects restarts.
			d.Logger.Error("settings persistence failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, applied)
}

// handleResetRateLimits clears a caller's usage counters.
func (d *Dependencies) handleResetRateLimits(w http.ResponseWriter, r *http.Request) {
	callerID := r.PathValue("caller")
	d.Limiter.Reset(callerID)
	d.Logger.Info("rate limits reset", zap.String("caller_id", callerID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
