package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mira/internal/service"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmbedding), errors.Is(err, service.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

func abortWithServiceError(c *gin.Context, prefix string, err error) {
	_ = c.Error(err)
	abortWithError(c, statusFor(err), prefix+": "+err.Error())
}
