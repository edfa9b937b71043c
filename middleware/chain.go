// Package middleware provides middleware utilities for MCP request handling.
package middleware

import (
	"context"

	"github.com/felixgeelhaar/charcount/protocol"
)

// HandlerFunc is the signature for request handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middleware into a single middleware.
// Chain(m1, m2, m3) results in m1 wrapping m2 wrapping m3 wrapping the
// final handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ForMethods applies m only to requests whose method is listed. Other
// requests go straight to the next handler.
func ForMethods(m Middleware, methods ...string) Middleware {
	set := make(map[string]struct{}, len(methods))
	for _, method := range methods {
		set[method] = struct{}{}
	}
	return func(next HandlerFunc) HandlerFunc {
		wrapped := m(next)
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if _, ok := set[req.Method]; ok {
				return wrapped(ctx, req)
			}
			return next(ctx, req)
		}
	}
}
