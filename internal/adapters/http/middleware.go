package http

import (
	"fmt"

	"github.com/dkeye/Canvas/internal/telemetry"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	clientTokenKey = "client_token"
	requestIDKey   = "request_id"
)

// ClientTokenMiddleware gives every browser a stable token kept in the
// cookie session. It labels connections in logs; it is not an identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set(clientTokenKey, token)
			_ = sess.Save()
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// TracingMiddleware opens a server span per request and tags the response
// with a ksuid request id.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := ksuid.New().String()
		ctx, span := telemetry.Tracer().Start(c.Request.Context(), fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.url", c.Request.URL.Path),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
