package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(GetJWTSecret())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func serve(r *gin.Engine, path string, prepare func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if prepare != nil {
		prepare(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetJWTSecret("middleware-test-secret")

	r := gin.New()
	r.GET("/board", RequireRole("admin", "supervisor"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUsername))
	})

	sup := signed(t, jwt.MapClaims{"sub": "u1", "username": "sup.minh", "role": "supervisor"})
	w := serve(r, "/board", bearer(sup))
	if w.Code != http.StatusOK || w.Body.String() != "sup.minh" {
		t.Fatalf("supervisor: %d %q", w.Code, w.Body.String())
	}

	op := signed(t, jwt.MapClaims{"sub": "u2", "role": "operator"})
	if w := serve(r, "/board", bearer(op)); w.Code != http.StatusForbidden {
		t.Fatalf("operator: %d", w.Code)
	}

	noRole := signed(t, jwt.MapClaims{"sub": "u3"})
	if w := serve(r, "/board", bearer(noRole)); w.Code != http.StatusForbidden {
		t.Fatalf("no role: %d", w.Code)
	}

	if w := serve(r, "/board", func(r *http.Request) { r.Header.Set("Authorization", sup) }); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing Bearer prefix: %d", w.Code)
	}

	expired := signed(t, jwt.MapClaims{"sub": "u1", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix()})
	if w := serve(r, "/board", bearer(expired)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired: %d", w.Code)
	}
}

func TestTokenCookieIsAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetJWTSecret("middleware-test-secret")

	r := gin.New()
	r.GET("/me", RequireAuth(), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxUserID)) })

	tok := signed(t, jwt.MapClaims{"sub": "u9", "role": "warehouse"})
	w := serve(r, "/me", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: tok}) })
	if w.Code != http.StatusOK || w.Body.String() != "u9" {
		t.Fatalf("cookie auth: %d %q", w.Code, w.Body.String())
	}
}

func TestRequirePermissionUsesRoleCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetJWTSecret("middleware-test-secret")
	t.Cleanup(func() { ClearPermissionCache("") })

	permCache.Store("qc", permCacheEntry{
		codes:     []string{"orders.read", "quality.write"},
		expiresAt: time.Now().Add(time.Minute),
	})

	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.GET("/rejects", RequirePermission("orders.read", "quality.write"), ok)
	r.GET("/assign", RequirePermission("process.assign"), ok)

	qc := signed(t, jwt.MapClaims{"sub": "u4", "role": "qc"})
	if w := serve(r, "/rejects", bearer(qc)); w.Code != http.StatusNoContent {
		t.Fatalf("granted: %d", w.Code)
	}
	if w := serve(r, "/assign", bearer(qc)); w.Code != http.StatusForbidden {
		t.Fatalf("missing permission: %d", w.Code)
	}

	ClearPermissionCache("qc")
	if _, ok := permCache.Load("qc"); ok {
		t.Fatal("cache entry survived clear")
	}
}
