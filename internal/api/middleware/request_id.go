package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request correlation id on both sides.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key the id is stored under.
	RequestIDKey = "request_id"
)

// RequestID tags every request with a correlation id. A client-supplied
// X-Request-ID is honored so upstream callers can stitch traces together;
// otherwise a fresh UUID is minted. The id is echoed on the response and made
// available to handlers through the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}
