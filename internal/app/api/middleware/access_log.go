package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/pkg/logctx"
)

// AccessLogMiddleware logs one line per request with the request-scoped logger.
func AccessLogMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		lg := logctx.FromGin(c, base)
		if c.Writer.Status() >= 500 {
			lg.Warnw("http_access", fields...)
			return
		}
		lg.Infow("http_access", fields...)
	}
}
