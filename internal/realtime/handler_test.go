package realtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outreach-platform/internal/auth"
	"outreach-platform/internal/config"

	"github.com/gin-gonic/gin"
)

func handshakeFixture(t *testing.T) (*gin.Engine, *Registry, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "handshake-test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	registry := NewRegistry(testConfig(), nil)
	h := NewHandler(registry, mgr)

	r := gin.New()
	r.GET("/ws", h.Serve)
	return r, registry, mgr
}

func TestServe_RejectsMissingToken(t *testing.T) {
	r, registry, _ := handshakeFixture(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if registry.ClientCount() != 0 {
		t.Fatalf("unauthenticated request registered a client")
	}
}

func TestServe_RejectsInvalidToken(t *testing.T) {
	r, registry, _ := handshakeFixture(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token=not-a-jwt", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if registry.ClientCount() != 0 {
		t.Fatalf("invalid token registered a client")
	}
}

func TestServe_RejectsRefreshToken(t *testing.T) {
	r, registry, mgr := handshakeFixture(t)

	pair, err := mgr.IssuePair(time.Now(), "u1", "org", "agent")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+pair.RefreshToken, nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if registry.ClientCount() != 0 {
		t.Fatalf("refresh token registered a client")
	}
}

func TestServe_ValidTokenWithoutUpgradeHeadersConnectsNothing(t *testing.T) {
	r, registry, mgr := handshakeFixture(t)

	pair, err := mgr.IssuePair(time.Now(), "u1", "org", "agent")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	// A plain GET passes authentication but cannot be upgraded.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+pair.AccessToken, nil))

	if w.Code == http.StatusUnauthorized || w.Code == http.StatusForbidden {
		t.Fatalf("valid token rejected with %d", w.Code)
	}
	if registry.ClientCount() != 0 {
		t.Fatalf("failed upgrade left a registered client")
	}
}
