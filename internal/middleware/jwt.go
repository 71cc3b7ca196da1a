package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/edusphere/enrollment-api/internal/models"
	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
	"github.com/edusphere/enrollment-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the authenticated principal.
const ContextPrincipalKey = "currentPrincipal"

// JWT protects routes by requiring a valid bearer token signed with the
// identity service's shared secret. The verified {id, role} principal is
// stored on the context for downstream handlers.
func JWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token required"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := parseAccessToken(parts[1], secret)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, claims.Principal())
		c.Next()
	}
}

func parseAccessToken(tokenString, secret string) (*models.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
