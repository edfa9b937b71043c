package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
)

func TestTimeout(t *testing.T) {
	t.Run("cancels slow handlers", func(t *testing.T) {
		h := middleware.Timeout(20 * time.Millisecond)(func(ctx context.Context, _ *protocol.Request) (*protocol.Response, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return nil, nil
			}
		})

		_, err := h(context.Background(), newRequest("tools/call"))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if err == nil || err.Error() != "tools/call timed out after 20ms: context deadline exceeded" {
			t.Errorf("message = %v", err)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		want := errors.New("tool exploded")
		h := middleware.Timeout(time.Second)(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			return nil, want
		})
		if _, err := h(context.Background(), newRequest("tools/call")); err != want {
			t.Errorf("got %v", err)
		}
	})

	t.Run("fast handlers complete", func(t *testing.T) {
		h := middleware.Timeout(time.Second)(okHandler)
		if _, err := h(context.Background(), newRequest("ping")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("zero disables the deadline", func(t *testing.T) {
		h := middleware.Timeout(0)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if _, ok := ctx.Deadline(); ok {
				t.Error("expected no deadline")
			}
			return okHandler(ctx, req)
		})
		_, _ = h(context.Background(), newRequest("ping"))
	})
}
