package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"scholarai/internal/logger"
)

// RequestLog writes one structured line per request.
func RequestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id, ok := UserID(c); ok {
			kv = append(kv, "user_id", id)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("http request", kv...)
		case status >= 400:
			log.Warn("http request", kv...)
		default:
			log.Info("http request", kv...)
		}
	}
}
