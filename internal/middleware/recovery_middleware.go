// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"cuscatlan-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500 and logs who hit which route.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("route", c.FullPath()),
				zap.String("ip", c.ClientIP()),
				zap.Stack("stack"),
			}
			if identity, ok := GetIdentity(c); ok {
				fields = append(fields, zap.String("identity", identity))
			}
			logger.Error("panic recovered", fields...)

			// a handler that already streamed a response keeps its status
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
