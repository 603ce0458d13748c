package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/internal/models"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/response"
)

// SelfRole lets a caller through when the :id route param is their own user id.
const SelfRole = "SELF"

// Claims returns the caller set by JWT, or nil on public routes.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// RBAC admits callers whose role is listed. Administrators are always
// admitted; SelfRole admits a caller acting on their own :id.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == SelfRole {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		_, listed := allowedRoles[claims.Role]
		switch {
		case listed, claims.IsAdmin():
			c.Next()
		case allowSelf && c.Param("id") != "" && c.Param("id") == claims.UserID:
			c.Next()
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" cannot access this route"))
		}
	}
}

func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
