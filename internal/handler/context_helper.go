package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/internal/middleware"
	"github.com/Flexitaim/api-flexitaim/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actsAs reports whether the caller holds role. Nil claims never match.
func actsAs(claims *models.JWTClaims, role models.UserRole) bool {
	return claims != nil && claims.Role == role
}
