package auth

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	mapping "program-mapping/internal/mapping/domain"
	"program-mapping/internal/mapping/infrastructure/memory"
)

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	handler := wrapOK(secret)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mapping-sessions/s-1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy([]string{"/healthz"}, []string{"/metrics"}), discardLogger())
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/metrics"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestAuthMiddleware_ViewerMayReadAndExport(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "tenant-a", "viewer", nil)
	handler := wrapOK(secret)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/mapping-sessions"},
		{http.MethodGet, "/api/v1/mapping-sessions/s-1"},
		{http.MethodGet, "/api/v1/mapping-sessions/s-1/export.xlsx"},
		{http.MethodGet, "/api/v1/mapping-fields"},
		{http.MethodGet, "/api/v1/facets"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s %s: expected 200, got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestAuthMiddleware_ViewerForbiddenEdits(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "tenant-a", "viewer", nil)
	handler := wrapOK(secret)

	for _, path := range []string{
		"/api/v1/mapping-sessions/s-1/selection",
		"/api/v1/mapping-sessions/s-1/period-field",
		"/api/v1/mapping-sessions/s-1/window",
		"/api/v1/mapping-sessions/s-1/save",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, resp.Code)
		}
	}
}

func TestAuthMiddleware_EditorMaySave(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil), discardLogger())

	var got Identity
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// "operator" tokens issued before the editor role still edit.
	for _, role := range []string{"editor", "operator"} {
		token := mustToken(t, secret, "tenant-a", role, []string{"prog-1"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/mapping-sessions/s-1/save", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", role, resp.Code)
		}
		if got.TenantID != "tenant-a" || got.Role != RoleEditor || got.Subject != "user-1" {
			t.Fatalf("%s: unexpected identity %+v", role, got)
		}
		if len(got.Programs) != 1 || got.Programs[0] != "prog-1" {
			t.Fatalf("%s: program scope lost: %+v", role, got.Programs)
		}
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token := mustToken(t, []byte("other-secret"), "tenant-a", "admin", nil)
	handler := wrapOK([]byte("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/facets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if resp.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected a bearer challenge")
	}
}

func TestParseToken_RejectsBadClaims(t *testing.T) {
	secret := []byte("test-secret")
	if _, err := ParseToken("", secret); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	for name, token := range map[string]string{
		"no tenant":     mustToken(t, secret, "", "viewer", nil),
		"bad role":      mustToken(t, secret, "tenant-a", "owner", nil),
		"empty program": mustToken(t, secret, "tenant-a", "viewer", []string{""}),
	} {
		if _, err := ParseToken(token, secret); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewMiddlewareWithoutSecret(t *testing.T) {
	if mw := NewMiddleware(nil, NewDefaultPolicy(nil, nil), nil); mw != nil {
		t.Fatalf("expected nil middleware without a secret")
	}
	var mw *Middleware
	resp := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/mapping-sessions/s-1/save", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", resp.Code)
	}
}

func TestProgramChecker(t *testing.T) {
	store := memory.NewStore(nil)
	store.PutProgram(mapping.Program{ID: "prog-1", TenantID: "tenant-a", Name: "Retail"})
	store.PutProgram(mapping.Program{ID: "prog-3", TenantID: "tenant-a", Name: "Wholesale"})
	checker := NewProgramChecker(store)
	tenantA := WithIdentity(context.Background(), Identity{TenantID: "tenant-a", Role: RoleViewer})

	if err := checker.EnsureProgramAccess(context.Background(), "prog-1"); err != nil {
		t.Fatalf("expected anonymous context to pass, got %v", err)
	}
	if err := checker.EnsureProgramAccess(tenantA, "prog-1"); err != nil {
		t.Fatalf("expected owner to pass, got %v", err)
	}
	tenantB := WithIdentity(context.Background(), Identity{TenantID: "tenant-b", Role: RoleAdmin})
	if err := checker.EnsureProgramAccess(tenantB, "prog-1"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
	if err := checker.EnsureProgramAccess(tenantA, "prog-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	scoped := WithIdentity(context.Background(), Identity{TenantID: "tenant-a", Role: RoleEditor, Programs: []string{"prog-3"}})
	if err := checker.EnsureProgramAccess(scoped, "prog-1"); !errors.Is(err, ErrOutOfScope) {
		t.Fatalf("expected out of scope, got %v", err)
	}
	if err := checker.EnsureProgramAccess(scoped, "prog-3"); err != nil {
		t.Fatalf("expected scoped program to pass, got %v", err)
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func wrapOK(secret []byte) http.Handler {
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil), discardLogger())
	return mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func mustToken(t *testing.T, secret []byte, tenantID, role string, programs []string) string {
	t.Helper()
	claims := Claims{
		TenantID: tenantID,
		Role:     role,
		Programs: programs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
