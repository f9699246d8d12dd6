package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/codewheel/toolgate/internal/audit"
	"github.com/codewheel/toolgate/internal/auth"
	"github.com/codewheel/toolgate/internal/config"
	"github.com/codewheel/toolgate/internal/events"
	"github.com/codewheel/toolgate/internal/gateway"
	"github.com/codewheel/toolgate/internal/policy"
	"github.com/codewheel/toolgate/internal/ratelimit"
	"github.com/codewheel/toolgate/internal/registry"
	"github.com/codewheel/toolgate/internal/result"
)

func newTestRouter(t *testing.T, mutate func(*config.Settings)) http.Handler {
	t.Helper()

	settings := config.DefaultSettings()
	if mutate != nil {
		mutate(&settings)
	}

	logger := zap.NewNop()
	mgr := config.NewManager(settings, logger)

	reg := registry.NewRegistry()
	mustRegister := func(r registry.Registration) {
		t.Helper()
		if err := reg.Register(r); err != nil {
			t.Fatal(err)
		}
	}
	mustRegister(registry.Registration{
		ID: "content_list", Category: "content", Operation: policy.OpRead,
		Description: "List content items.",
		Handler: func(context.Context, map[string]any) result.Output {
			return result.OK("", nil)
		},
	})
	mustRegister(registry.Registration{
		ID: "content_create", Category: "content", Operation: policy.OpWrite,
		Handler: func(context.Context, map[string]any) result.Output {
			return result.OK("Created.", nil)
		},
	})

	limiter := ratelimit.New(mgr.Current)
	bus := events.NewBus(logger)
	gw := gateway.New(reg, limiter, mgr.Current, audit.NewLogRecorder(logger), bus, logger)

	deps := &Dependencies{
		Gateway:  gw,
		Registry: reg,
		Limiter:  limiter,
		Config:   mgr,
		Auth: auth.NewStaticAuthenticator(auth.Identity{
			CallerID: "c1",
			Scopes:   policy.NewScopeSet(policy.ScopeRead, policy.ScopeWrite),
			Grants:   policy.NewGrants("use content"),
		}),
		Logger: logger,
	}
	return NewRouter(deps)
}

func doRequest(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer tgk_testkey")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestExecuteEndpoint_Success(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(router, "POST", "/v1/tools/content_list/execute", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res result.CanonicalResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Message != "Success." {
		t.Errorf("unexpected body %+v", res)
	}
}

func TestExecuteEndpoint_MissingAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest("POST", "/v1/tools/content_list/execute", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestExecuteEndpoint_ModeDenialReturns403(t *testing.T) {
	router := newTestRouter(t, func(s *config.Settings) { s.Access.ReadOnlyMode = true })

	rec := doRequest(router, "POST", "/v1/tools/content_create/execute",
		`{"arguments":{"title":"x"}}`, map[string]string{"Content-Type": "application/json"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	var res result.CanonicalResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Success || res.ErrorCode != policy.CodeReadOnlyMode {
		t.Errorf("unexpected body %+v", res)
	}
}

func TestExecuteEndpoint_RateLimitReturns429WithRetryAfter(t *testing.T) {
	router := newTestRouter(t, func(s *config.Settings) { s.RateLimiting.MaxWritesPerMinute = 1 })

	if rec := doRequest(router, "POST", "/v1/tools/content_create/execute", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("first write should pass, got %d", rec.Code)
	}

	rec := doRequest(router, "POST", "/v1/tools/content_create/execute", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

func TestExecuteEndpoint_ScopeHeaderNarrows(t *testing.T) {
	router := newTestRouter(t, func(s *config.Settings) { s.Access.TrustScopeHeader = true })

	rec := doRequest(router, "POST", "/v1/tools/content_create/execute", "",
		map[string]string{ScopeHeader: "read"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("narrowed scopes should deny the write, got %d", rec.Code)
	}

	var res result.CanonicalResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.ErrorCode != policy.CodeInsufficientScope {
		t.Errorf("expected INSUFFICIENT_SCOPE, got %+v", res)
	}
}

func TestExecuteEndpoint_ScopeHeaderWithNoValidScopesIgnored(t *testing.T) {
	router := newTestRouter(t, func(s *config.Settings) { s.Access.TrustScopeHeader = true })

	// A header that parses to nothing must not strip the granted scopes.
	rec := doRequest(router, "POST", "/v1/tools/content_create/execute", "",
		map[string]string{ScopeHeader: "bogus"})
	if rec.Code != http.StatusOK {
		t.Errorf("unparseable scope header should be ignored, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExecuteEndpoint_ScopeHeaderIgnoredWhenUntrusted(t *testing.T) {
	router := newTestRouter(t, nil) // trust_scope_header defaults to false

	// Attempting to widen or narrow has no effect.
	rec := doRequest(router, "POST", "/v1/tools/content_create/execute", "",
		map[string]string{ScopeHeader: "read"})
	if rec.Code != http.StatusOK {
		t.Errorf("header should be ignored when untrusted, got %d", rec.Code)
	}
}

func TestToolsEndpoint_ListsAndFilters(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(router, "GET", "/v1/tools", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Tools []ToolResp `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(body.Tools))
	}

	rec = doRequest(router, "GET", "/v1/tools?q=create", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tools) != 1 || body.Tools[0].ID != "content_create" {
		t.Errorf("filter failed: %+v", body.Tools)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(t, func(s *config.Settings) { s.Access.ConfigOnlyMode = true })

	rec := doRequest(router, "GET", "/v1/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body StatusResp
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.CallerID != "c1" || !body.ConfigOnlyMode || body.ReadOnlyMode {
		t.Errorf("unexpected status %+v", body)
	}
	if len(body.RateLimits) != 4 {
		t.Errorf("expected 4 quota classes, got %d", len(body.RateLimits))
	}
}

func TestSettingsEndpoints_GetAndReplace(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(router, "GET", "/v1/admin/settings", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	update := `{"access":{"read_only_mode":true,"audit_logging":true},"rate_limiting":{"enabled":true,"max_writes_per_minute":10}}`
	rec = doRequest(router, "PUT", "/v1/admin/settings", update,
		map[string]string{"Content-Type": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var applied config.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &applied); err != nil {
		t.Fatal(err)
	}
	if !applied.Access.ReadOnlyMode {
		t.Error("read_only_mode should be applied")
	}

	// The new snapshot is live: writes are now denied.
	rec = doRequest(router, "POST", "/v1/tools/content_create/execute", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("hot-applied read-only mode should deny writes, got %d", rec.Code)
	}
}

func TestAdminCallers_UnavailableWithoutStore(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(router, "GET", "/v1/admin/callers", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("caller admin without a store should 503, got %d", rec.Code)
	}
}

func TestRateLimitReset(t *testing.T) {
	router := newTestRouter(t, func(s *config.Settings) { s.RateLimiting.MaxWritesPerMinute = 1 })

	doRequest(router, "POST", "/v1/tools/content_create/execute", "", nil)
	if rec := doRequest(router, "POST", "/v1/tools/content_create/execute", "", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write should be limited, got %d", rec.Code)
	}

	if rec := doRequest(router, "POST", "/v1/admin/rate-limits/c1/reset", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("reset should succeed, got %d", rec.Code)
	}

	if rec := doRequest(router, "POST", "/v1/tools/content_create/execute", "", nil); rec.Code != http.StatusOK {
		t.Errorf("write should pass after reset, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
