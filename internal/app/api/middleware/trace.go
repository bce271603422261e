package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/tool"
)

const HeaderRequestID = "X-Request-ID"

// TraceMiddleware reads X-Request-ID or generates one, and stores it under
// logctx.TraceIDKey on both gin.Context and the request context.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderRequestID)
		if traceID == "" {
			traceID = tool.GenerateUUIDV7()
		}

		c.Set(logctx.TraceIDKey, traceID)
		ctx := context.WithValue(c.Request.Context(), logctx.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(HeaderRequestID, traceID)
		c.Next()
	}
}
