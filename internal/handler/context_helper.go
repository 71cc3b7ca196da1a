package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edusphere/enrollment-api/internal/middleware"
	"github.com/edusphere/enrollment-api/internal/models"
)

func principalFromContext(c *gin.Context) models.Principal {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return models.Principal{}
	}
	principal, ok := value.(models.Principal)
	if !ok {
		return models.Principal{}
	}
	return principal
}
