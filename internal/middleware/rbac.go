package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/edusphere/enrollment-api/internal/models"
	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
	"github.com/edusphere/enrollment-api/pkg/response"
)

// RequireRoles gates a route to the listed roles. Finer-grained decisions
// (ownership, taught courses, payload shape) live in the access policy; this
// is only the coarse per-route allow-list.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		value, exists := c.Get(ContextPrincipalKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		principal, ok := value.(models.Principal)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[principal.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not authorized"))
			c.Abort()
			return
		}

		c.Next()
	}
}
