package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "pomobot/backend/internal/errors"
)

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	errorBody := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		errorBody["details"] = apiErr.Details
	}

	c.JSON(apiErr.Status, gin.H{"error": errorBody})
}
