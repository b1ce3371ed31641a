package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abdullah-608/gigpanda/config"
	"github.com/gin-gonic/gin"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:        "test-secret",
		TokenExpireHours: 1,
	}
}

func authRouter(cfg *config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", AuthMiddleware(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": GetUserID(c),
			"role":    GetRole(c),
		})
	})
	router.GET("/client-only", AuthMiddleware(cfg), RequireRole("client"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func TestGenerateToken(t *testing.T) {
	cfg := testAuthConfig()

	token, expiresAt, err := GenerateToken("user-1", "client", cfg)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.IsZero() {
		t.Fatal("expected expiry to be set")
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testAuthConfig()
	router := authRouter(cfg)

	token, _, err := GenerateToken("user-1", "freelancer", cfg)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	otherSecret := &config.AuthConfig{JWTSecret: "other-secret", TokenExpireHours: 1}
	foreignToken, _, err := GenerateToken("user-1", "freelancer", otherSecret)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	expiredCfg := &config.AuthConfig{JWTSecret: cfg.JWTSecret, TokenExpireHours: -1}
	expiredToken, _, err := GenerateToken("user-1", "freelancer", expiredCfg)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreignToken, http.StatusUnauthorized},
		{"expired token", "Bearer " + expiredToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthMiddlewareSetsContext(t *testing.T) {
	cfg := testAuthConfig()
	router := authRouter(cfg)

	token, _, err := GenerateToken("user-42", "client", cfg)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"user-42", "client"} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
}

func TestRequireRole(t *testing.T) {
	cfg := testAuthConfig()
	router := authRouter(cfg)

	clientToken, _, _ := GenerateToken("user-1", "client", cfg)
	freelancerToken, _, _ := GenerateToken("user-2", "freelancer", cfg)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"matching role passes", clientToken, http.StatusOK},
		{"other role forbidden", freelancerToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/client-only", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
