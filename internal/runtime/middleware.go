package runtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drblury/bidgate/internal/runtime/ids"
	loggingpkg "github.com/drblury/bidgate/internal/runtime/logging"
)

const (
	headerRequestID = "X-Request-ID"
	ctxKeyRequestID = "request_id"
)

// requestIDMiddleware keeps a client supplied X-Request-ID when it is a ULID,
// generates one otherwise and echoes it on the response.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ids.RequestID(c.GetHeader(headerRequestID))
		c.Set(ctxKeyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	if id := c.GetString(ctxKeyRequestID); id != "" {
		return id
	}
	return ids.CreateULID()
}

// bodyLimitMiddleware caps how many bytes a handler may read from the body.
func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func accessLogMiddleware(logger loggingpkg.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Trace("http request", loggingpkg.LogFields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString(ctxKeyRequestID),
		})
	}
}
