package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/family-console-api/internal/models"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
	"github.com/noah-isme/family-console-api/pkg/response"
)

// RequireRoles lets through operators holding one of roles. Super admins are
// always allowed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles)+1)
	allowed[models.RoleSuperAdmin] = struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
