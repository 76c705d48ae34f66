package middleware

import (
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per HTTP request through the application logger
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if sub, ok := c.Get("subject"); ok {
			fields["subject"] = sub
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithComponent("http").WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("[API] request failed")
		case status >= 400:
			entry.Warn("[API] request rejected")
		default:
			entry.Info("[API] request")
		}
	}
}
