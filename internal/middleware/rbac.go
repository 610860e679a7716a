package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/semuinside/exam-backend/internal/response"
)

// RequireAdmin allows only tokens whose app_metadata role is admin.
// Must run after RequireJWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !claims.IsAdmin() {
			response.AbortFail(c, http.StatusForbidden, response.ErrAdminAccessOnly)
			return
		}
		c.Next()
	}
}
