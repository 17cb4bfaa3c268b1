package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/pkg/auth"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "kicks", ExpirationMinutes: 60}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token := mintTestToken(t, cfg, userID, enums.RoleCustomer)

	var captured struct {
		user uuid.UUID
		role enums.Role
	}
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, role, err := ActorFromContext(r.Context())
		if err != nil {
			t.Errorf("actor from context: %v", err)
		}
		captured.user = id
		captured.role = role
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.role != enums.RoleCustomer {
		t.Fatalf("expected role customer got %s", captured.role)
	}
}

func TestRequireStaff(t *testing.T) {
	cfg := testJWTConfig()
	cases := []struct {
		role enums.Role
		want int
	}{
		{enums.RoleCustomer, http.StatusForbidden},
		{enums.RoleStaff, http.StatusOK},
		{enums.RoleAdmin, http.StatusOK},
	}

	for _, tc := range cases {
		handler := Auth(cfg, nil)(RequireStaff(nil)(okHandler()))
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mintTestToken(t, cfg, uuid.New(), tc.role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("role %s: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}

func TestActorFromContextRequiresAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, _, err := ActorFromContext(req.Context()); err == nil {
		t.Fatal("expected error without authenticated user")
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
