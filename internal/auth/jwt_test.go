package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestGenerateAndValidateToken(t *testing.T) {
	m := NewTokenManager("super-secret", time.Hour)

	token, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if err := m.ValidateToken(token); err != nil {
		t.Errorf("ValidateToken() rejected freshly minted token: %v", err)
	}
}

func TestValidateRawSecret(t *testing.T) {
	m := NewTokenManager("super-secret", time.Hour)
	if err := m.ValidateToken("super-secret"); err != nil {
		t.Errorf("raw shared secret rejected: %v", err)
	}
}

func TestValidateTokenRejections(t *testing.T) {
	m := NewTokenManager("super-secret", time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", mustToken(t, NewTokenManager("other-secret", time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() accepted an invalid token")
			}
		})
	}
}

func TestExpiredToken(t *testing.T) {
	m := NewTokenManager("super-secret", -time.Minute)
	token, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	if err := m.ValidateToken(token); err != ErrTokenExpired {
		t.Errorf("ValidateToken() = %v, want ErrTokenExpired", err)
	}
}

func TestTokenMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewTokenManager("super-secret", time.Hour)
	valid := mustToken(t, m)

	router := gin.New()
	router.GET("/cron", TokenMiddleware(m), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	tests := []struct {
		name       string
		target     string
		authHeader string
		wantStatus int
	}{
		{"valid query token", "/cron?token=" + valid, "", http.StatusOK},
		{"raw secret query token", "/cron?token=super-secret", "", http.StatusOK},
		{"bearer header", "/cron", "Bearer " + valid, http.StatusOK},
		{"missing token", "/cron", "", http.StatusUnauthorized},
		{"bad token", "/cron?token=nope", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func mustToken(t *testing.T, m *TokenManager) string {
	t.Helper()
	token, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	return token
}
