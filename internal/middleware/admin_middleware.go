package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "pomobot/backend/internal/errors"
)

const adminTokenHeader = "X-Admin-Token"

// AdminToken guards destructive admin routes with a static shared token.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader(adminTokenHeader)
		if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			apiErr := apperrors.Unauthorized("missing or invalid admin token")
			c.AbortWithStatusJSON(apiErr.Status, gin.H{
				"error": gin.H{"code": apiErr.Code, "message": apiErr.Message},
			})
			return
		}
		c.Next()
	}
}
