package middleware

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

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/service"
	"github.com/miadp/fmrgate/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	respID := rr.Header().Get("X-Request-ID")
	// UUID v7 format check: 36 chars with dashes
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if respID := rr.Header().Get("X-Request-ID"); respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestRequestIDReplacesOversizedClientID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxClientRequestID+1))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated ID, got %q", got)
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Authenticate middleware tests
// ---------------------------------------------------------------------------

type authFixture struct {
	store   *store.Store
	auth    *service.AuthService
	active  string
	revoked string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	active, key, err := service.GenerateAPIKey("active")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		t.Fatal(err)
	}
	revoked, rkey, err := service.GenerateAPIKey("revoked")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAPIKey(ctx, rkey); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAPIKeyActive(ctx, rkey.ID, false); err != nil {
		t.Fatal(err)
	}

	auth := service.NewAuthService(s, discardLogger())
	t.Cleanup(auth.Wait)
	return &authFixture{store: s, auth: auth, active: active, revoked: revoked}
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name     string
		header   string
		key      string
		wantCode int
		wantKind string
	}{
		{"missing header", "", "", http.StatusUnauthorized, "MissingCredential"},
		{"blank header", DefaultAPIKeyHeader, "   ", http.StatusUnauthorized, "MissingCredential"},
		{"unknown key", DefaultAPIKeyHeader, "fmr_nope", http.StatusUnauthorized, "InvalidCredential"},
		{"deactivated key", DefaultAPIKeyHeader, f.revoked, http.StatusForbidden, "CredentialDeactivated"},
		{"wrong header", "Authorization", f.active, http.StatusUnauthorized, "MissingCredential"},
		{"active key", DefaultAPIKeyHeader, f.active, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Authenticate(f.auth, "", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				p := GetPrincipal(r.Context())
				if p == nil || p.Label != "active" {
					t.Errorf("principal = %+v, want active key", p)
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/v1/subprojects", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.key)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				if !called {
					t.Error("handler was not reached")
				}
				return
			}
			if called {
				t.Error("handler ran for a denied request")
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body model.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tt.wantCode || body.Error.Kind != tt.wantKind || body.Error.Message == "" {
				t.Errorf("error body = %+v", body.Error)
			}
		})
	}
}

func TestAuthenticateCustomHeader(t *testing.T) {
	f := newAuthFixture(t)
	handler := Authenticate(f.auth, "X-FMR-Key", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-FMR-Key", f.active)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(DefaultAPIKeyHeader, f.active)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("default header accepted when a custom one is configured: %d", rr.Code)
	}
}

func TestAuthenticateStoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.store.Close()

	handler := Authenticate(f.auth, "", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run when the key store is down")
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(DefaultAPIKeyHeader, f.active)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// GetPrincipal tests
// ---------------------------------------------------------------------------

func TestGetPrincipalWithValue(t *testing.T) {
	expected := &Principal{KeyID: 42, KeyPrefix: "fmr_abcd1234"}
	ctx := context.WithValue(context.Background(), AuthPrincipalKey, expected)

	got := GetPrincipal(ctx)
	if got == nil || got.KeyID != 42 {
		t.Fatalf("GetPrincipal = %+v, want KeyID 42", got)
	}
}

func TestGetPrincipalWithoutValue(t *testing.T) {
	if got := GetPrincipal(context.Background()); got != nil {
		t.Error("expected nil principal from bare context")
	}
}

// ---------------------------------------------------------------------------
// Logger middleware tests
// ---------------------------------------------------------------------------

func TestLoggerLevelsAndPrincipal(t *testing.T) {
	f := newAuthFixture(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("hi")) })
	chain := RequestID(Logger(logger, "/healthz")(Authenticate(f.auth, "", discardLogger())(ok)))

	req := httptest.NewRequest("GET", "/api/v1/miadp-fmr", nil)
	req.Header.Set(DefaultAPIKeyHeader, f.active)
	chain.ServeHTTP(httptest.NewRecorder(), req)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record %q: %v", buf.String(), err)
	}
	if rec["level"] != "INFO" || rec["status"] != float64(200) || rec["bytes"] != float64(2) {
		t.Errorf("log record = %v", rec)
	}
	if p, _ := rec["key_prefix"].(string); !strings.HasPrefix(p, service.KeyPrefix) {
		t.Errorf("key_prefix = %v", rec["key_prefix"])
	}
	if rec["request_id"] == "" {
		t.Error("request_id missing from log record")
	}

	buf.Reset()
	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/miadp-fmr", nil))
	if !strings.Contains(buf.String(), `"level":"WARN"`) || strings.Contains(buf.String(), "key_prefix") {
		t.Errorf("denied request log = %s", buf.String())
	}

	buf.Reset()
	quiet := RequestID(Logger(logger, "/healthz")(ok))
	quiet.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	if !strings.Contains(buf.String(), `"level":"DEBUG"`) {
		t.Errorf("probe log = %s", buf.String())
	}
}
