package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/edusphere/enrollment-api/internal/models"
)

func roleRouter(principal *models.Principal, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if principal != nil {
		r.Use(func(c *gin.Context) {
			c.Set(ContextPrincipalKey, *principal)
			c.Next()
		})
	}
	r.GET("/gated", RequireRoles(roles...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireRolesAllows(t *testing.T) {
	r := roleRouter(&models.Principal{ID: "adm1", Role: models.RoleAdmin}, models.RoleAdmin, models.RoleProfessor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gated", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesDeniesOtherRole(t *testing.T) {
	r := roleRouter(&models.Principal{ID: "stu1", Role: models.RoleStudent}, models.RoleAdmin, models.RoleProfessor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gated", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesWithoutPrincipal(t *testing.T) {
	r := roleRouter(nil, models.RoleAdmin)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gated", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
