package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
)

func TestRecover(t *testing.T) {
	t.Run("passes through normal responses", func(t *testing.T) {
		h := middleware.Recover()(okHandler)
		resp, err := h(context.Background(), newRequest("ping"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp == nil {
			t.Fatal("expected response")
		}
	})

	t.Run("converts panic to PanicError", func(t *testing.T) {
		h := middleware.Recover()(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			panic("something broke")
		})

		resp, err := h(context.Background(), newRequest("tools/call"))
		if resp != nil {
			t.Errorf("expected nil response, got %+v", resp)
		}

		var pe *middleware.PanicError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *PanicError, got %T", err)
		}
		if pe.Value != "something broke" {
			t.Errorf("Value = %v", pe.Value)
		}
		if len(pe.Stack) == 0 {
			t.Error("expected stack trace")
		}
		if err.Error() != "panic: something broke" {
			t.Errorf("Error() = %q", err.Error())
		}
		if _, ok := protocol.AsError(err); ok {
			t.Error("panic must not be reported as a protocol error")
		}
	})

	t.Run("unwraps panicked errors", func(t *testing.T) {
		sentinel := errors.New("sentinel")
		h := middleware.Recover()(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			panic(sentinel)
		})

		_, err := h(context.Background(), newRequest("tools/call"))
		if !errors.Is(err, sentinel) {
			t.Errorf("expected errors.Is to find sentinel, got %v", err)
		}
	})

	t.Run("logs recovered panics", func(t *testing.T) {
		logger := &mockLogger{}
		h := middleware.Recover(middleware.WithRecoverLogger(logger))(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			panic("boom")
		})

		req := newRequest(protocol.MethodToolsCall)
		req.Params = []byte(`{"name":"countCharacters","arguments":{"text":"x"}}`)
		_, err := h(middleware.ContextWithRequestID(context.Background(), "req-9"), req)

		var pe *middleware.PanicError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *PanicError, got %T", err)
		}
		if len(logger.entries) != 1 {
			t.Fatalf("expected one entry, got %+v", logger.entries)
		}
		e := logger.entries[0]
		if e.level != "error" || e.message != "panic recovered" {
			t.Errorf("entry = %s %q", e.level, e.message)
		}
		if v, _ := fieldValue(e.fields, "panic"); v != "boom" {
			t.Errorf("panic field = %v", v)
		}
		if v, _ := fieldValue(e.fields, "tool"); v != "countCharacters" {
			t.Errorf("tool field = %v", v)
		}
		if v, _ := fieldValue(e.fields, "request_id"); v != "req-9" {
			t.Errorf("request_id field = %v", v)
		}
	})

	t.Run("custom handler", func(t *testing.T) {
		var got any
		m := middleware.RecoverWithHandler(func(_ context.Context, req *protocol.Request, v any) (*protocol.Response, error) {
			got = v
			return protocol.NewErrorResponse(req.ID, protocol.NewInternalError("recovered")), nil
		})
		h := m(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			panic(42)
		})

		resp, err := h(context.Background(), newRequest("ping"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 42 {
			t.Errorf("handler got %v, want 42", got)
		}
		if resp.Error == nil || resp.Error.Message != "recovered" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})
}
