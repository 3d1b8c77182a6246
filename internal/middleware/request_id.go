package middleware

import (
	"feedbackapp/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation ID in and out
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied IDs
const maxRequestIDLength = 128

// RequestID keeps a client-supplied X-Request-ID or generates one, stores it in the gin
// context under observability.RequestIDKey and in the request context for log correlation,
// and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(observability.RequestIDKey, id)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
