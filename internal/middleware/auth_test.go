package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/auth"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, identity.Identity) {
	t.Helper()
	var seen identity.Identity
	r := gin.New()
	r.Use(Identify(secret))
	r.GET("/whoami", func(c *gin.Context) {
		seen = GetIdentity(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestIdentifyWithoutHeaderIsAnonymous(t *testing.T) {
	w, who := serve(t, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if !who.IsAnonymous() {
		t.Errorf("identity = %v, want anonymous", who)
	}
}

func TestIdentifyValidToken(t *testing.T) {
	want := identity.Identity{ID: uuid.New(), Ephemeral: true}
	token, err := auth.GenerateToken(want, secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w, who := serve(t, "Bearer "+token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if who != want {
		t.Errorf("identity = %+v, want %+v", who, want)
	}
}

func TestIdentifyRejectsBadCredentials(t *testing.T) {
	foreign, _ := auth.GenerateToken(identity.Identity{ID: uuid.New()}, "other-secret", time.Hour)
	expired, _ := auth.GenerateToken(identity.Identity{ID: uuid.New()}, secret, -time.Minute)

	tests := []struct {
		name   string
		header string
	}{
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"no token", "Bearer"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + foreign},
		{"expired", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := serve(t, tt.header)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestGetIdentityWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if who := GetIdentity(c); !who.IsAnonymous() {
		t.Errorf("identity = %v, want anonymous", who)
	}
}
