package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/exchange-settlement/internal/config"
	"github.com/exchange-settlement/internal/middleware"
	"github.com/exchange-settlement/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, userID uint, role, issuer string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, service.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newRouter() *gin.Engine {
	auth := service.NewAuthService(config.JWTConfig{Secret: testSecret, Issuer: "identity"})

	r := gin.New()
	r.GET("/me", middleware.AuthMiddleware(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": middleware.GetUserID(c)})
	})
	r.GET("/admin", middleware.AuthMiddleware(auth), middleware.AdminMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doRequest(r *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	hour := time.Now().Add(time.Hour)

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", 7, "", "identity", hour), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, 7, "", "someone-else", hour), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, 7, "", "identity", time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"no user", "Bearer " + signToken(t, testSecret, 0, "", "identity", hour), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, testSecret, 7, "", "identity", hour), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, "/me", tt.authorization)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	w := doRequest(r, "/me", "Bearer "+signToken(t, testSecret, 7, "", "identity", hour))
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())
}

func TestAdminMiddleware(t *testing.T) {
	r := newRouter()
	hour := time.Now().Add(time.Hour)

	w := doRequest(r, "/admin", "Bearer "+signToken(t, testSecret, 7, "", "identity", hour))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, "/admin", "Bearer "+signToken(t, testSecret, 1, service.RoleAdmin, "identity", hour))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
