package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/felixgeelhaar/charcount/protocol"
)

// PanicError is returned when a handler panics. It is deliberately not a
// *protocol.Error, so transports treat it as a failed exchange rather than
// framing it as a JSON-RPC error response.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// PanicHandler is called when a panic is recovered.
type PanicHandler func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error)

// RecoverOption configures the recover middleware.
type RecoverOption func(*recoverConfig)

type recoverConfig struct {
	logger Logger
}

// WithRecoverLogger sets the logger that records recovered panics.
func WithRecoverLogger(l Logger) RecoverOption {
	return func(c *recoverConfig) {
		c.logger = l
	}
}

// Recover returns middleware that catches panics and converts them to *PanicError.
func Recover(opts ...RecoverOption) Middleware {
	cfg := &recoverConfig{logger: NopLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}

	return RecoverWithHandler(func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error) {
		fields := []Field{
			F("method", req.Method),
			F("panic", fmt.Sprint(panicVal)),
		}
		if tool := toolName(req); tool != "" {
			fields = append(fields, F("tool", tool))
		}
		if id := RequestIDFromContext(ctx); id != "" {
			fields = append(fields, F("request_id", id))
		}
		cfg.logger.Error("panic recovered", fields...)
		return defaultPanicHandler(ctx, req, panicVal)
	})
}

// RecoverWithHandler returns middleware that catches panics and calls the provided handler.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = handler(ctx, req, r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func defaultPanicHandler(_ context.Context, _ *protocol.Request, panicVal any) (*protocol.Response, error) {
	return nil, &PanicError{Value: panicVal, Stack: debug.Stack()}
}
