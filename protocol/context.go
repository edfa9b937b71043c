package protocol

import "context"

// requestMetaKey is the context key for request metadata.
type requestMetaKey struct{}

// Well-known request metadata keys set by the HTTP adapter.
const (
	MetaRemoteAddr = "remote_addr"
	MetaUserAgent  = "user_agent"
	MetaSessionID  = "session_id"
	MetaRequestID  = "request_id"
)

// RequestMeta carries transport-level details (peer address, headers) down to
// middleware and handlers.
type RequestMeta map[string]string

// ContextWithRequestMeta returns a new context with the request metadata attached.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata from the context, or nil.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return meta
	}
	return nil
}

// GetRequestMeta returns a single metadata value, or "" when absent.
func GetRequestMeta(ctx context.Context, key string) string {
	return RequestMetaFromContext(ctx)[key]
}

// SetRequestMeta returns a context whose metadata has key set to value.
// The metadata already in ctx is copied, never mutated.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	old := RequestMetaFromContext(ctx)
	meta := make(RequestMeta, len(old)+1)
	for k, v := range old {
		meta[k] = v
	}
	meta[key] = value
	return ContextWithRequestMeta(ctx, meta)
}
