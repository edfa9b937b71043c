package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/charcount/protocol"
)

type requestIDKey struct{}

// RequestIDOption configures the request ID middleware.
type RequestIDOption func(*requestIDConfig)

type requestIDConfig struct {
	generate func() string
}

// WithRequestIDGenerator replaces the uuid generator.
func WithRequestIDGenerator(fn func() string) RequestIDOption {
	return func(c *requestIDConfig) {
		c.generate = fn
	}
}

// RequestID tags each dispatch with an ID for logs and spans. An ID already
// in the context, such as the one the HTTP router assigned, is kept so that
// access logs and dispatch logs correlate. The ID is also copied into the
// request metadata under protocol.MetaRequestID.
func RequestID(opts ...RequestIDOption) Middleware {
	cfg := &requestIDConfig{generate: uuid.NewString}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			id := RequestIDFromContext(ctx)
			if id == "" {
				id = cfg.generate()
				ctx = ContextWithRequestID(ctx, id)
			}
			if protocol.GetRequestMeta(ctx, protocol.MetaRequestID) != id {
				ctx = protocol.SetRequestMeta(ctx, protocol.MetaRequestID, id)
			}
			return next(ctx, req)
		}
	}
}

// RequestIDFromContext returns the request ID, or "" when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID returns a context carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
