package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrResourceExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrUnsupportedInput):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrUnsupportedExtension):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, component string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err, component).WithField("path", c.Request.URL.Path).Error("Request failed")
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
