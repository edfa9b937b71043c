package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/charcount/protocol"
)

// Byte units for size limits.
const (
	KB = 1024
	MB = 1024 * KB
)

// SizeLimitOption configures the size limit middleware.
type SizeLimitOption func(*sizeLimitConfig)

type sizeLimitConfig struct {
	logger Logger
}

// WithSizeLimitLogger sets the logger that records rejected requests.
func WithSizeLimitLogger(l Logger) SizeLimitOption {
	return func(c *sizeLimitConfig) {
		c.logger = l
	}
}

// SizeLimit rejects requests whose params are larger than maxBytes. The
// HTTP entry points cap whole bodies before parsing; this guards the
// per-message frames of the WebSocket entry point as well.
func SizeLimit(maxBytes int64, opts ...SizeLimitOption) Middleware {
	cfg := &sizeLimitConfig{logger: NopLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			size := int64(len(req.Params))
			if size <= maxBytes {
				return next(ctx, req)
			}

			fields := []Field{
				F("method", req.Method),
				F("size", size),
				F("max", maxBytes),
			}
			if tool := toolName(req); tool != "" {
				fields = append(fields, F("tool", tool))
			}
			if id := RequestIDFromContext(ctx); id != "" {
				fields = append(fields, F("request_id", id))
			}
			cfg.logger.Warn("params too large", fields...)

			return nil, protocol.NewInvalidRequest(
				fmt.Sprintf("Invalid Request: params of %d bytes exceed limit of %d bytes", size, maxBytes))
		}
	}
}

