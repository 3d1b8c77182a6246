// Package middleware provides gin middleware shared by the HTTP server.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorRecoveryMiddleware turns a handler panic into a 500 JSON response and logs the stack.
func ErrorRecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NewLogger(nil)
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := string(debug.Stack())

				var panicErr error
				if e, ok := r.(error); ok {
					panicErr = e
				} else {
					panicErr = fmt.Errorf("panic: %v", r)
				}

				appErr := contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInternalError,
					contextutils.SeverityFatal,
					"Internal server error",
					"A panic occurred while processing the request",
					panicErr,
				)

				logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
					"http.method": c.Request.Method,
					"http.path":   c.Request.URL.Path,
					"stack":       stackTrace,
				})

				// Add stack trace to error details in development
				if gin.Mode() == gin.DebugMode {
					appErr.Details = fmt.Sprintf("%s\nStack trace: %s", appErr.Details, stackTrace)
				}

				_ = c.Error(appErr)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": appErr.Message,
				})
			}
		}()

		c.Next()
	}
}
