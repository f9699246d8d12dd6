package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/codewheel/toolgate/internal/audit"
)

// handleListAuditEvents queries the audit log with filters and pagination.
func (d *Dependencies) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Audit query surface requires ClickHouse"})
		return
	}

	q := r.URL.Query()
	params := audit.ListEntriesParams{Page: 1, PageSize: 50}

	if v := q.Get("outcome"); v != "" {
		params.Outcome = &v
	}
	if v := q.Get("actor"); v != "" {
		params.Actor = &v
	}
	if v := q.Get("action"); v != "" {
		params.Action = &v
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "start_time must be RFC3339"})
			return
		}
		params.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "end_time must be RFC3339"})
			return
		}
		params.EndTime = &t
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			params.PageSize = n
		}
	}

	entries, total, err := d.Reader.ListEntries(r.Context(), params)
	if err != nil {
		d.Logger.Error("audit query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Audit query failed"})
		return
	}

	out := make([]AuditEntryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResp{
			RequestID:  e.RequestID,
			Actor:      e.Actor,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Outcome:    e.Outcome,
			Timestamp:  e.Timestamp,
			Metadata:   e.Metadata,
		})
	}

	writeJSON(w, http.StatusOK, AuditListResp{
		Entries:  out,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

// handleAuditSummary returns outcome counts over a trailing window
// (days query parameter, default 7).
func (d *Dependencies) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Audit query surface requires ClickHouse"})
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 90 {
			days = n
		}
	}

	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	stats, err := d.Reader.Summary(r.Context(), since)
	if err != nil {
		d.Logger.Error("audit summary failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Audit summary failed"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
