package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hotlabel/publishers/pkg/auth"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/publisher"
	"github.com/hotlabel/publishers/pkg/stats"
	"github.com/hotlabel/publishers/pkg/store"
	"github.com/hotlabel/publishers/pkg/tasks"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDKURL = "https://cdn.example/sdk/v1/hotlabel.js"

// fakeTaskService stands in for the downstream task service.
type fakeTaskService struct {
	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []*http.Request
}

func (f *fakeTaskService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		http.Error(w, "no handler", http.StatusInternalServerError)

		return
	}

	handler(w, r)
}

func (f *fakeTaskService) set(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handler = h
}

func (f *fakeTaskService) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.requests) == 0 {
		return nil
	}

	return f.requests[len(f.requests)-1]
}

type testServer struct {
	handler http.Handler
	store   store.Store
	tasks   *fakeTaskService
	hub     *Hub
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, extraYAML string) *testServer {
	t.Helper()

	log, _ := logtest.NewNullLogger()

	fake := &fakeTaskService{}
	downstream := httptest.NewServer(fake)
	t.Cleanup(downstream.Close)

	cfg, err := config.Parse([]byte(fmt.Sprintf(
		"task_service:\n  base_url: %s\n  timeout: 1s\nintegration:\n  sdk_url: %s\n%s",
		downstream.URL, testSDKURL, extraYAML,
	)))
	require.NoError(t, err)

	st := store.NewSQLiteStore(log, filepath.Join(t.TempDir(), "publishers.db"))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, st.Start(ctx))
	t.Cleanup(func() { _ = st.Stop() })
	require.NoError(t, st.Migrate(ctx))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	recorder := stats.NewMemoryRecorder()

	authSvc, err := auth.NewService(log, cfg, st, m)
	require.NoError(t, err)

	hub := NewHub(log, m)
	go hub.Run(ctx)

	pubSvc := publisher.NewService(log, cfg, st, recorder, tasks.NewProxy(log, cfg, m), m, hub)

	srv := NewServer(log, cfg, st, recorder, authSvc, pubSvc, hub, m, reg)
	t.Cleanup(func() { _ = srv.Stop() })

	return &testServer{
		handler: srv.Handler(),
		store:   st,
		tasks:   fake,
		hub:     hub,
		reg:     reg,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	return rec
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"company_name":              "Acme Media",
		"website_url":               "https://acme.example",
		"contact_email":             email,
		"contact_name":              "Jane Doe",
		"website_categories":        []string{"news", "tech"},
		"estimated_monthly_traffic": 250000,
		"integration_platform":      "wordpress",
		"preferred_task_types":      []string{"text_classification"},
	}
}

type registered struct {
	ID     string
	APIKey string
}

func (ts *testServer) register(t *testing.T, email string) registered {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/v1/publishers", registerBody(email), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)

	return registered{ID: body["id"].(string), APIKey: body["api_key"].(string)}
}

func keyHeader(key string) map[string]string {
	return map[string]string{"X-API-Key": key}
}

func internalHeader() map[string]string {
	return map[string]string{"X-Internal-Service": "true"}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	envelope, ok := decode(t, rec)["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", rec.Body.String())

	return envelope["code"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/health", nil, map[string]string{middleware.RequestIDHeader: "req-123"})
	assert.Equal(t, "req-123", rec.Header().Get(middleware.RequestIDHeader))

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers/nope", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	envelope := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), envelope["request_id"])
}

func TestReady(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "healthy", body["database"].(map[string]any)["status"])
	assert.Equal(t, "memory", body["statistics"].(map[string]any)["backend"])

	require.NoError(t, ts.store.Stop())

	rec = ts.do(t, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body = decode(t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "unhealthy", body["database"].(map[string]any)["status"])
}

func TestOpenAPISpec(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/v1/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decode(t, rec)
	assert.Equal(t, "2.0", doc["swagger"])
	assert.Equal(t, "/api/v1", doc["basePath"])

	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/publishers")
	assert.Contains(t, paths, "/publishers/{id}/configuration")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	ts.register(t, "jane@acme.example")

	rec := ts.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "publishers_registrations_total 1")
	assert.Contains(t, body, `publishers_http_requests_total{method="POST",path="/api/v1/publishers",status="201"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/v1/nothing-here", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "resource_not_found", errorCode(t, rec))
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, "server:\n  cors_origins: [\"https://app.example\"]\n")

	rec := ts.do(t, http.MethodOptions, "/api/v1/publishers", nil, map[string]string{"Origin": "https://app.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	rec = ts.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCredentialErrorsOnScopedRoutes(t *testing.T) {
	ts := newTestServer(t, "")
	owner := ts.register(t, "jane@acme.example")

	base := "/api/v1/publishers/" + owner.ID
	routes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, base, nil},
		{http.MethodPatch, base, map[string]any{"company_name": "X"}},
		{http.MethodPatch, base + "/configuration", map[string]any{"appearance": map[string]any{"theme": "dark"}}},
		{http.MethodGet, base + "/statistics", nil},
		{http.MethodGet, base + "/integration-code", nil},
		{http.MethodPost, base + "/webhooks", map[string]any{"endpoint_url": "https://h.example"}},
		{http.MethodGet, base + "/webhooks", nil},
		{http.MethodPost, base + "/regenerate-api-key", nil},
		{http.MethodGet, base + "/tasks", nil},
		{http.MethodPatch, base + "/tasks/t1/status", map[string]any{"status": "COMPLETED"}},
		{http.MethodGet, base + "/audit", nil},
		{http.MethodGet, base + "/events", nil},
		{http.MethodGet, "/api/v1/publishers", nil},
	}

	credentials := []struct {
		name    string
		headers map[string]string
		code    string
	}{
		{"unknown key", keyHeader("pk_live_doesnotexist0000000000"), "invalid_credential"},
		{"unknown bearer", map[string]string{"Authorization": "Bearer pk_live_nope"}, "invalid_credential"},
		{"missing", nil, "missing_credential"},
		{"wrong scheme", map[string]string{"Authorization": "Basic Zm9vOmJhcg=="}, "invalid_credential_format"},
	}

	for _, route := range routes {
		for _, cred := range credentials {
			t.Run(route.method+" "+route.path+" "+cred.name, func(t *testing.T) {
				rec := ts.do(t, route.method, route.path, route.body, cred.headers)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.Equal(t, cred.code, errorCode(t, rec))
				assert.Equal(t, "ApiKey", rec.Header().Get("WWW-Authenticate"))
			})
		}
	}
}

func TestOwnership(t *testing.T) {
	ts := newTestServer(t, "")
	a := ts.register(t, "a@acme.example")
	b := ts.register(t, "b@acme.example")

	rec := ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil, keyHeader(a.APIKey))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, a.ID, decode(t, rec)["id"])

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil,
		map[string]string{"Authorization": "Bearer " + a.APIKey})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{
		"/api/v1/publishers/" + b.ID,
		"/api/v1/publishers/" + b.ID + "/statistics",
		"/api/v1/publishers/" + b.ID + "/webhooks",
		"/api/v1/publishers/" + b.ID + "/tasks",
		"/api/v1/publishers/does-not-exist",
	} {
		rec = ts.do(t, http.MethodGet, path, nil, keyHeader(a.APIKey))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "forbidden", errorCode(t, rec), path)
	}
}

func TestInternalAccess(t *testing.T) {
	ts := newTestServer(t, "")
	a := ts.register(t, "a@acme.example")
	ts.register(t, "b@acme.example")

	rec := ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil, internalHeader())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, a.ID, decode(t, rec)["id"])

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_credential", errorCode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil,
		map[string]string{"X-Internal-Service": "false"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers/missing", nil, internalHeader())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "resource_not_found", errorCode(t, rec))

	// Key-only routes ignore the marker.
	rec = ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID+"/webhooks", nil, internalHeader())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInternalTrustedNetworks(t *testing.T) {
	ts := newTestServer(t, "auth:\n  internal:\n    trusted_networks: [\"10.0.0.0/8\"]\n")
	a := ts.register(t, "a@acme.example")

	// httptest requests originate from 192.0.2.1.
	rec := ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil, internalHeader())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_credential", errorCode(t, rec))
}

func TestInternalTrustIgnoresForwardedHeaders(t *testing.T) {
	forged := func(forwardedFor string) map[string]string {
		return map[string]string{
			"X-Internal-Service": "true",
			"X-Forwarded-For":    forwardedFor,
		}
	}

	t.Run("forged trusted address", func(t *testing.T) {
		ts := newTestServer(t, "server:\n  trust_proxy_headers: true\n"+
			"auth:\n  internal:\n    trusted_networks: [\"10.0.0.0/8\"]\n")
		a := ts.register(t, "a@acme.example")

		rec := ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil, forged("10.1.2.3"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing_credential", errorCode(t, rec))

		rec = ts.do(t, http.MethodGet, "/api/v1/publishers", nil, forged("10.1.2.3"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing_credential", errorCode(t, rec))
	})

	t.Run("trusted peer behind forwarded header", func(t *testing.T) {
		ts := newTestServer(t, "server:\n  trust_proxy_headers: true\n"+
			"auth:\n  internal:\n    trusted_networks: [\"192.0.2.0/24\"]\n")
		a := ts.register(t, "a@acme.example")

		rec := ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil, forged("203.0.113.7"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, a.ID, decode(t, rec)["id"])
	})
}

func TestListPublishersInternalOnly(t *testing.T) {
	ts := newTestServer(t, "")
	a := ts.register(t, "a@acme.example")
	ts.register(t, "b@acme.example")
	ts.register(t, "c@acme.example")

	rec := ts.do(t, http.MethodGet, "/api/v1/publishers?limit=2", nil, internalHeader())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.EqualValues(t, 3, body["total"])
	assert.Len(t, body["items"], 2)

	for _, item := range body["items"].([]any) {
		assert.NotContains(t, item.(map[string]any), "api_key")
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers", nil, keyHeader(a.APIKey))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers?limit=0", nil, internalHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/publishers?offset=-1", nil, internalHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitRegistration(t *testing.T) {
	ts := newTestServer(t, "server:\n  rate_limit:\n    enabled: true\n    registration:\n      requests_per_minute: 1\n")

	ts.register(t, "a@acme.example")

	rec := ts.do(t, http.MethodPost, "/api/v1/publishers", registerBody("b@acme.example"), nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other tiers keep their own budget.
	rec = ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	ts := newTestServer(t, "")
	a := ts.register(t, "a@acme.example")

	require.NoError(t, ts.store.Stop())

	rec := ts.do(t, http.MethodGet, "/api/v1/publishers/"+a.ID, nil, keyHeader(a.APIKey))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errorCode(t, rec))
	assert.False(t, strings.Contains(rec.Body.String(), "database is closed"))
}
