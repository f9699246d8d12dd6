package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/codewheel/toolgate/internal/events"
)

func TestMetrics_CountsBusEvents(t *testing.T) {
	m := New()
	bus := events.NewBus(zap.NewNop())
	m.Attach(bus)

	bus.Publish(events.Event{Type: events.TypeStarted, ToolID: "content_create"})
	bus.Publish(events.Event{Type: events.TypeSucceeded, ToolID: "content_create", DurationMs: 12})
	bus.Publish(events.Event{Type: events.TypeFailed, ToolID: "content_create", Reason: events.ReasonDeniedRateLimit})
	bus.Publish(events.Event{Type: events.TypeAuditSinkError})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`toolgate_executions_started_total{tool="content_create"} 1`,
		`toolgate_executions_succeeded_total{tool="content_create"} 1`,
		`toolgate_executions_failed_total{reason="policy_denied_rate_limit",tool="content_create"} 1`,
		`toolgate_audit_sink_errors_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
