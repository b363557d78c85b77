package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nexusauctions/nexus-backend/pkg/auth"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

func authTestConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret-test-secret-test-secret",
		Issuer:            "nexus-test",
		ExpirationMinutes: 10,
	}
}

func authTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

func TestAuthStampsUserOntoContext(t *testing.T) {
	cfg := authTestConfig()
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now().UTC(), auth.AccessTokenPayload{UserID: userID, Role: enums.UserRoleSeller})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var gotID uuid.UUID
	var gotRole enums.UserRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFromContext(r.Context())
		gotRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(cfg, authTestLogger())(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotID != userID {
		t.Fatalf("user id not propagated: %s", gotID)
	}
	if gotRole != enums.UserRoleSeller {
		t.Fatalf("role not propagated: %s", gotRole)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	resp := httptest.NewRecorder()
	Auth(authTestConfig(), authTestLogger())(next).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	resp := httptest.NewRecorder()
	Auth(authTestConfig(), authTestLogger())(next).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireRoleBlocksOtherRoles(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/settlement/run", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.New(), enums.UserRoleBuyer))
	resp := httptest.NewRecorder()
	RequireRole(enums.UserRoleModerator, authTestLogger())(next).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/v1/settlement/run", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.New(), enums.UserRoleModerator))
	resp = httptest.NewRecorder()
	RequireRole(enums.UserRoleModerator, authTestLogger())(next).ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
}
