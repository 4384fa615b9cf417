// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"cellhub/internal/core/apperror"
	appctx "cellhub/internal/core/context"
	"cellhub/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. The stack trace goes
// to the log; the client sees only an internal error with the request ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				ctx := c.Request.Context()
				logger.Error(ctx, "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				_ = c.Error(
					apperror.NewInternal(fmt.Errorf("panic: %v", err)).
						WithDetail("request_id", appctx.RequestID(ctx)),
				)
				c.Abort()
			}
		}()
		c.Next()
	}
}
