// Package audit provides the durable, append-only record of every policy
// decision and execution outcome.
package audit

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// Outcome values for an audit entry.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Entry is one audit record. Created once per terminal decision, never
// mutated or deleted by this subsystem.
type Entry struct {
	RequestID  string
	Actor      string
	Action     string
	TargetType string
	TargetID   string
	Outcome    string
	Timestamp  time.Time
	Metadata   map[string]string
}

// Recorder persists audit entries. Record must never block the caller and a
// persistence failure must never fail the tool call it describes.
type Recorder interface {
	Record(e *Entry)
	Close()
}

// sensitiveKeyFragments flags metadata keys whose values are redacted
// before persistence.
var sensitiveKeyFragments = []string{
	"password", "pass", "secret", "token", "key", "credentials", "api_key",
}

// SanitizeMetadata returns a copy of the metadata with values under
// sensitive-looking keys replaced by a redaction marker.
func SanitizeMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		lower := strings.ToLower(k)
		redacted := false
		for _, frag := range sensitiveKeyFragments {
			if strings.Contains(lower, frag) {
				out[k] = "[REDACTED]"
				redacted = true
				break
			}
		}
		if !redacted {
			out[k] = v
		}
	}
	return out
}

// LogRecorder is the fallback Recorder for local development. Entries go to
// the structured log instead of ClickHouse.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a LogRecorder on the given logger.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(e *Entry) {
	r.logger.Info("audit_entry",
		zap.String("request_id", e.RequestID),
		zap.String("actor", e.Actor),
		zap.String("action", e.Action),
		zap.String("target_type", e.TargetType),
		zap.String("target_id", e.TargetID),
		zap.String("outcome", e.Outcome),
		zap.Any("metadata", e.Metadata),
	)
}

func (r *LogRecorder) Close() {}
