package api

import (
	"time"

	"github.com/codewheel/toolgate/internal/ratelimit"
)

// ErrorResp is the generic error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// ExecuteRequest is the body of POST /v1/tools/{tool}/execute.
type ExecuteRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// ToolResp describes one registered tool in the discovery listing.
type ToolResp struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Operation   string `json:"operation"`
	WriteKind   string `json:"write_kind,omitempty"`
	Description string `json:"description,omitempty"`
	HasSchema   bool   `json:"has_schema"`
}

// StatusResp is the caller-facing status surface.
type StatusResp struct {
	CallerID       string                 `json:"caller_id"`
	Scopes         []string               `json:"scopes"`
	ReadOnlyMode   bool                   `json:"read_only_mode"`
	ConfigOnlyMode bool                   `json:"config_only_mode"`
	AuditLogging   bool                   `json:"audit_logging"`
	RateLimits     []ratelimit.ClassUsage `json:"rate_limits"`
}

// CreateCallerRequest is the body of POST /v1/admin/callers.
type CreateCallerRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
	Grants []string `json:"grants"`
}

// UpdateCallerRequest is the body of PATCH /v1/admin/callers/{id}.
type UpdateCallerRequest struct {
	Name   *string  `json:"name"`
	Scopes []string `json:"scopes"`
	Grants []string `json:"grants"`
}

// CallerResp is a caller without key material.
type CallerResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	Scopes       []string  `json:"scopes"`
	Grants       []string  `json:"grants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CallerWithKeyResp is returned exactly once: on creation and key rotation.
type CallerWithKeyResp struct {
	CallerResp
	APIKey string `json:"api_key"`
}

// AuditEntryResp is one audit entry in the query API.
type AuditEntryResp struct {
	RequestID  string            `json:"request_id"`
	Actor      string            `json:"actor"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Outcome    string            `json:"outcome"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditListResp is the paginated audit listing.
type AuditListResp struct {
	Entries  []AuditEntryResp `json:"entries"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}
