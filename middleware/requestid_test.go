package middleware_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
)

func TestRequestID(t *testing.T) {
	t.Run("injects a uuid", func(t *testing.T) {
		var id string
		h := middleware.RequestID()(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			id = middleware.RequestIDFromContext(ctx)
			return okHandler(ctx, req)
		})

		_, _ = h(context.Background(), newRequest("ping"))
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("request ID %q is not a uuid: %v", id, err)
		}
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		seen := make(map[string]bool)
		h := middleware.RequestID()(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			seen[middleware.RequestIDFromContext(ctx)] = true
			return okHandler(ctx, req)
		})
		for i := 0; i < 50; i++ {
			_, _ = h(context.Background(), newRequest("ping"))
		}
		if len(seen) != 50 {
			t.Errorf("expected 50 unique IDs, got %d", len(seen))
		}
	})

	t.Run("keeps an existing ID", func(t *testing.T) {
		var id string
		h := middleware.RequestID()(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			id = middleware.RequestIDFromContext(ctx)
			return okHandler(ctx, req)
		})

		ctx := middleware.ContextWithRequestID(context.Background(), "from-router")
		_, _ = h(ctx, newRequest("ping"))
		if id != "from-router" {
			t.Errorf("id = %q, want from-router", id)
		}
	})

	t.Run("custom generator", func(t *testing.T) {
		var id string
		h := middleware.RequestID(middleware.WithRequestIDGenerator(func() string { return "fixed" }))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			id = middleware.RequestIDFromContext(ctx)
			return okHandler(ctx, req)
		})
		_, _ = h(context.Background(), newRequest("ping"))
		if id != "fixed" {
			t.Errorf("id = %q, want fixed", id)
		}
	})

	t.Run("copies the ID into request metadata", func(t *testing.T) {
		var meta string
		h := middleware.RequestID()(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			meta = protocol.GetRequestMeta(ctx, protocol.MetaRequestID)
			return okHandler(ctx, req)
		})

		ctx := protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{protocol.MetaRemoteAddr: "10.0.0.1"})
		ctx = middleware.ContextWithRequestID(ctx, "rid-1")
		_, _ = h(ctx, newRequest("ping"))
		if meta != "rid-1" {
			t.Errorf("meta request_id = %q, want rid-1", meta)
		}
	})

	t.Run("empty context has no ID", func(t *testing.T) {
		if id := middleware.RequestIDFromContext(context.Background()); id != "" {
			t.Errorf("expected empty ID, got %q", id)
		}
	})
}
