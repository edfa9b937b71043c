package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
)

func record(name string, order *[]string) middleware.Middleware {
	return func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			*order = append(*order, name+":before")
			resp, err := next(ctx, req)
			*order = append(*order, name+":after")
			return resp, err
		}
	}
}

func okHandler(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResponse(req.ID, "ok"), nil
}

func newRequest(method string) *protocol.Request {
	return &protocol.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method}
}

func TestChain(t *testing.T) {
	t.Run("first middleware is outermost", func(t *testing.T) {
		var order []string
		h := middleware.Chain(record("a", &order), record("b", &order))(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			order = append(order, "handler")
			return okHandler(ctx, req)
		})

		if _, err := h(context.Background(), newRequest("ping")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"a:before", "b:before", "handler", "b:after", "a:after"}
		if len(order) != len(want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
			}
		}
	})

	t.Run("empty chain returns handler unchanged", func(t *testing.T) {
		h := middleware.Chain()(okHandler)
		resp, err := h(context.Background(), newRequest("ping"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Result != "ok" {
			t.Errorf("Result = %v, want ok", resp.Result)
		}
	})
}

func TestForMethods(t *testing.T) {
	var order []string
	h := middleware.ForMethods(record("only", &order), protocol.MethodToolsCall)(okHandler)

	t.Run("applies to listed methods", func(t *testing.T) {
		order = nil
		_, _ = h(context.Background(), newRequest(protocol.MethodToolsCall))
		if len(order) != 2 {
			t.Errorf("expected middleware to run, order = %v", order)
		}
	})

	t.Run("bypasses other methods", func(t *testing.T) {
		order = nil
		_, _ = h(context.Background(), newRequest(protocol.MethodPing))
		if len(order) != 0 {
			t.Errorf("expected middleware to be skipped, order = %v", order)
		}
	})
}

func TestDefaultStack(t *testing.T) {
	t.Run("recovers panics and logs", func(t *testing.T) {
		logger := &mockLogger{}
		h := middleware.Chain(middleware.DefaultStack(logger)...)(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			panic("boom")
		})

		_, err := h(context.Background(), newRequest("tools/call"))
		if err == nil {
			t.Fatal("expected error from panicking handler")
		}
		var pe *middleware.PanicError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *PanicError, got %T", err)
		}
		if len(logger.entries) != 1 || logger.entries[0].level != "error" {
			t.Fatalf("expected one error log entry, got %+v", logger.entries)
		}
		if msg := logger.entries[0].message; msg != "panic recovered" {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("stack adds optional stages", func(t *testing.T) {
		if n := len(middleware.DefaultStack(nil)); n != 4 {
			t.Errorf("default stack has %d stages, want 4", n)
		}
		full := middleware.Stack(middleware.StackConfig{
			Timeout:        time.Second,
			MaxParamsBytes: 10,
			RateLimit:      1,
			RateBurst:      1,
			OTel:           []middleware.OTelOption{},
		})
		if len(full) != 7 {
			t.Errorf("full stack has %d stages, want 7", len(full))
		}

		h := middleware.Chain(full...)(okHandler)
		req := newRequest(protocol.MethodToolsCall)
		req.Params = []byte(`{"name":"countCharacters","arguments":{"text":"too long"}}`)
		_, err := h(context.Background(), req)
		if !errors.Is(err, protocol.NewInvalidRequest("")) {
			t.Errorf("expected the size limit to reject, got %v", err)
		}
	})

	t.Run("with timeout sets a deadline", func(t *testing.T) {
		h := middleware.Chain(middleware.DefaultStackWithTimeout(middleware.NopLogger{}, time.Second)...)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected deadline on context")
			}
			if middleware.RequestIDFromContext(ctx) == "" {
				t.Error("expected request ID on context")
			}
			return okHandler(ctx, req)
		})
		if _, err := h(context.Background(), newRequest("ping")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
