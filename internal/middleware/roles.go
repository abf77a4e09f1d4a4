package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/response"
)

// RequireRole allows the request through only when the authenticated user's
// role is one of the listed roles. Must run after RequireAuth.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrRoleDenied)
	}
}
