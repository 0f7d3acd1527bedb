package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"outreach-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func router(identity gin.HandlerFunc, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{}
	if identity != nil {
		handlers = append(handlers, identity)
	}
	handlers = append(handlers, mw...)
	handlers = append(handlers, func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/t", handlers...)
	return r
}

func identify(userID, organizationID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, organizationID, role)
		c.Request = c.Request.WithContext(ctx)
	}
}

func get(r *gin.Engine) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	return w.Code
}

func TestRequireOrganization(t *testing.T) {
	if code := get(router(identify("u1", "org", "agent"), RequireOrganization())); code != http.StatusOK {
		t.Fatalf("with org: %d", code)
	}
	if code := get(router(identify("u1", "", "agent"), RequireOrganization())); code != http.StatusUnauthorized {
		t.Fatalf("without org: %d", code)
	}
	if code := get(router(nil, RequireOrganization())); code != http.StatusUnauthorized {
		t.Fatalf("without identity: %d", code)
	}
}

func TestRequireAnyRole(t *testing.T) {
	mw := RequireAnyRole(RoleOwner, RoleAnalyst)

	if code := get(router(identify("u1", "org", RoleAnalyst), mw)); code != http.StatusOK {
		t.Fatalf("allowed role: %d", code)
	}
	if code := get(router(identify("u1", "org", RoleAgent), mw)); code != http.StatusForbidden {
		t.Fatalf("disallowed role: %d", code)
	}
	if code := get(router(identify("u1", "org", ""), mw)); code != http.StatusUnauthorized {
		t.Fatalf("missing role: %d", code)
	}
}

func TestRequireAnyRole_SuperAdminBypass(t *testing.T) {
	mw := RequireAnyRole(RoleOwner)
	if code := get(router(identify("u1", "org", RoleSuperAdmin), mw)); code != http.StatusOK {
		t.Fatalf("super_admin bypass: %d", code)
	}
}
