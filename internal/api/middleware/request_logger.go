package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-Id"

// RequestLogger tags each request with an id and logs one line when it completes.
// Paths in quiet are only logged on failure.
func RequestLogger(l *logrus.Logger, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)
		c.Set("request_id", reqID)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if skip[route] && status < 400 {
			return
		}

		fields := logrus.Fields{
			"request_id": reqID,
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"bytes_out":  c.Writer.Size(),
			"ip":         c.ClientIP(),
		}
		if v := c.GetString("user_id"); v != "" {
			fields["user_id"] = v
		}
		if v := c.GetString("role"); v != "" {
			fields["role"] = v
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		entry := l.WithFields(fields)

		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
