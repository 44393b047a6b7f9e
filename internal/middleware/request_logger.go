package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"pharmaspot/internal/logging"
)

// RequestLogger puts a per-request logger into the request context and
// logs one line per request, at a level chosen by status.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := base.With(
			"method", c.Request.Method,
			"url", c.Request.URL.Path,
			"remote_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)
		if rid := c.GetHeader("X-Request-ID"); rid != "" {
			l = l.With("request_id", rid)
			c.Header("X-Request-ID", rid)
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			l = l.With("trace_id", sc.TraceID().String())
		}
		c.Request = c.Request.WithContext(logging.IntoContext(c.Request.Context(), l))

		start := time.Now()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()

		switch {
		case status >= 500:
			l.Error("request completed", "path", c.FullPath(), "status", status, "duration_ms", dur.Milliseconds(), "error", c.Errors.String())
		case status >= 400:
			l.Warn("request completed", "path", c.FullPath(), "status", status, "duration_ms", dur.Milliseconds())
		default:
			l.Info("request completed", "path", c.FullPath(), "status", status, "duration_ms", dur.Milliseconds(), "bytes", c.Writer.Size())
		}
	}
}
