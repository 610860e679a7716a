package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/response"
)

// ContextKeySessionID is the Gin context key for the parsed :session_id.
const ContextKeySessionID = "session_id"

// SessionParam parses the :session_id path parameter once for every session route.
func SessionParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("session_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		c.Set(ContextKeySessionID, id)
		c.Next()
	}
}

// GetSessionID returns the id stored by SessionParam.
func GetSessionID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextKeySessionID)
	sid, _ := id.(uuid.UUID)
	return sid
}

// NoStore keeps answers and results out of browser and proxy caches.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
