// Package middleware provides request middleware for the MCP dispatch chain.
//
// Each middleware wraps the next handler, so cross-cutting concerns stay out
// of tool code:
//
//	chain := middleware.Chain(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Timeout(30*time.Second),
//	    middleware.Logging(logger),
//	    middleware.OTel(),
//	    middleware.ForMethods(middleware.RateLimit(10, 20), protocol.MethodToolsCall),
//	)
//	handler := chain(dispatch)
//
// Recover turns panics into *PanicError, which transports report as failed
// exchanges (HTTP 500) rather than JSON-RPC error responses. SizeLimit and
// RateLimit reject requests with *protocol.Error values that are framed back
// to the client normally.
//
// Logger is the logging seam used across the module; NewSlogLogger adapts
// log/slog to it.
package middleware
