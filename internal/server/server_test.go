package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/service"
	"github.com/miadp/fmrgate/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   *store.Store
	authSvc *service.AuthService
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// fully wired Server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(context.Background(), store.Config{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(st, logger)
	srv := New(DefaultConfig(), st, authSvc, logger)

	return &testEnv{server: srv, store: st, authSvc: authSvc}
}

// issueKey creates an active API key and returns the raw secret.
func (e *testEnv) issueKey(t *testing.T, label string) (string, *model.APIKey) {
	t.Helper()
	raw, key, err := service.GenerateAPIKey(label)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := e.store.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	return raw, key
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doAPIKey(t *testing.T, method, path string, body io.Reader, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{"X-API-Key": apiKey})
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func initializeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]interface{}{},
			"clientInfo":      map[string]interface{}{"name": "test", "version": "1.0"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(b)
}

// ---------------------------------------------------------------------------
// Probes and unprotected endpoints
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on every response")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)
	assertStatus(t, env.do(t, "GET", "/readyz", nil, nil), http.StatusOK)

	env.store.Close()
	assertStatus(t, env.do(t, "GET", "/readyz", nil, nil), http.StatusServiceUnavailable)
}

func TestSeedIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/seed", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "contact MIS MIADP") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestDocsArePublic(t *testing.T) {
	env := newTestEnv(t)
	assertStatus(t, env.do(t, "GET", "/docs", nil, nil), http.StatusOK)

	rr := env.do(t, "GET", "/api/v1/docs", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var doc map[string]interface{}
	decodeJSON(t, rr, &doc)
	if doc["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v", doc["openapi"])
	}
}

// ---------------------------------------------------------------------------
// API key gate
// ---------------------------------------------------------------------------

func TestProtectedEndpointsRequireKey(t *testing.T) {
	env := newTestEnv(t)
	raw, key := env.issueKey(t, "revoked")
	if err := env.store.SetAPIKeyActive(context.Background(), key.ID, false); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/api/v1/subprojects", "/api/v1/miadp-fmr"} {
		t.Run(path, func(t *testing.T) {
			tests := []struct {
				name string
				key  string
				want int
				kind string
			}{
				{"missing", "", http.StatusUnauthorized, "MissingCredential"},
				{"unknown", "fmr_not_issued", http.StatusUnauthorized, "InvalidCredential"},
				{"deactivated", raw, http.StatusForbidden, "CredentialDeactivated"},
			}
			for _, tt := range tests {
				rr := env.doAPIKey(t, "GET", path, nil, tt.key)
				assertStatus(t, rr, tt.want)

				var body model.ErrorResponse
				decodeJSON(t, rr, &body)
				if body.Error.Code != tt.want || body.Error.Kind != tt.kind {
					t.Errorf("%s: error = %+v", tt.name, body.Error)
				}
			}
		})
	}
}

func TestSubprojectsWithValidKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	raw, key := env.issueKey(t, "fmr-watch")

	title := "Concrete footbridge"
	if err := env.store.UpsertSubproject(ctx, &model.Subproject{Code: "SP-100", Title: &title}); err != nil {
		t.Fatal(err)
	}

	before := time.Now().Add(-time.Second)
	rr := env.doAPIKey(t, "GET", "/api/v1/subprojects", nil, raw)
	assertStatus(t, rr, http.StatusOK)

	var resp model.ListResponse
	decodeJSON(t, rr, &resp)
	if !resp.Success || resp.Count != 1 {
		t.Errorf("response = %+v", resp)
	}

	env.authSvc.Wait()
	got, err := env.store.GetAPIKeyByHash(ctx, key.KeyHash)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsed == nil || got.LastUsed.Before(before) {
		t.Errorf("last used = %v, want after %v", got.LastUsed, before)
	}
}

func TestReactivatedKeyIsAdmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	raw, key := env.issueKey(t, "flip")

	env.store.SetAPIKeyActive(ctx, key.ID, false)
	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/miadp-fmr", nil, raw), http.StatusForbidden)

	env.store.SetAPIKeyActive(ctx, key.ID, true)
	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/miadp-fmr", nil, raw), http.StatusOK)
	env.authSvc.Wait()
}

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/api/v1/subprojects", nil, map[string]string{
		"Origin":                         "https://fmrwatch.example",
		"Access-Control-Request-Method":  "GET",
		"Access-Control-Request-Headers": "X-API-Key",
	})

	if rr.Code < 200 || rr.Code >= 300 {
		t.Errorf("CORS preflight status = %d, want 2xx", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	assertStatus(t, env.do(t, "GET", "/api/v1/nope", nil, nil), http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// MCP transport
// ---------------------------------------------------------------------------

func TestMCPEndpointUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/mcp", initializeBody(t), nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestMCPEndpointWithAPIKey(t *testing.T) {
	env := newTestEnv(t)
	raw, _ := env.issueKey(t, "mcp-test")

	rr := env.do(t, "POST", "/mcp", initializeBody(t), map[string]string{
		"X-API-Key": raw,
		"Accept":    "application/json, text/event-stream",
	})
	if rr.Code == http.StatusUnauthorized || rr.Code == http.StatusForbidden {
		t.Fatalf("MCP endpoint returned %d with valid API key", rr.Code)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err == nil {
		if result, ok := resp["result"].(map[string]interface{}); ok {
			if info, ok := result["serverInfo"].(map[string]interface{}); ok && info["name"] != "MIADP FMR Watch" {
				t.Errorf("serverInfo.name = %v", info["name"])
			}
		}
	}
	env.authSvc.Wait()
}

func TestMCPDisabled(t *testing.T) {
	env := newTestEnv(t)
	cfg := DefaultConfig()
	cfg.EnableMCP = false
	srv := New(cfg, env.store, env.authSvc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("POST", "/mcp", initializeBody(t)))
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestListenAndServeStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second
	srv := New(cfg, env.store, env.authSvc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestConfigAddr(t *testing.T) {
	cfg := Config{Host: "::1", Port: 9090}
	if got := cfg.Addr(); got != "[::1]:9090" {
		t.Errorf("Addr = %q", got)
	}
}
