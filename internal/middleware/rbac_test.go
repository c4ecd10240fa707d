package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

func newRoleRouter(claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.DELETE("/dashboard/cache", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RequireRoles("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		status int
	}{
		{"admin", &models.JWTClaims{Role: "admin"}, http.StatusNoContent},
		{"lecturer", &models.JWTClaims{Role: "lecturer"}, http.StatusForbidden},
		{"no role", &models.JWTClaims{}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		newRoleRouter(tc.claims).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/dashboard/cache", nil))
		assert.Equal(t, tc.status, rec.Code, tc.name)
	}
}
