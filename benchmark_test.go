package charcount_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/charcount"
	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
	"github.com/felixgeelhaar/charcount/testutil"
	"github.com/felixgeelhaar/charcount/tools"
)

// BenchmarkCountCharacters measures the counting function alone.
func BenchmarkCountCharacters(b *testing.B) {
	inputs := map[string]string{
		"ascii":  strings.Repeat("hello world ", 100),
		"emoji":  strings.Repeat("\U0001F600", 200),
		"accent": strings.Repeat("caf\u00e9 ", 200),
	}
	for name, text := range inputs {
		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tools.CountCharacters(text)
			}
		})
	}
}

// BenchmarkToolExecution measures tool execution including schema validation.
func BenchmarkToolExecution(b *testing.B) {
	srv := testutil.NewServer(b)
	tool, _ := srv.Tool(tools.CountCharactersName)
	input := json.RawMessage(`{"text":"hello"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tool.Execute(context.Background(), input); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMiddlewareChain measures middleware overhead.
func BenchmarkMiddlewareChain(b *testing.B) {
	baseHandler := func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return protocol.NewResponse(req.ID, map[string]any{"status": "ok"}), nil
	}
	req := &protocol.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "test",
	}

	b.Run("no_middleware", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := baseHandler(context.Background(), req); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("default_stack", func(b *testing.B) {
		handler := middleware.Chain(middleware.DefaultStack(middleware.NopLogger{})...)(baseHandler)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := handler(context.Background(), req); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkHTTPRoundTrip measures one tools/call through each entry point.
func BenchmarkHTTPRoundTrip(b *testing.B) {
	app, err := charcount.New(nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	body := testutil.CallBody(1, tools.CountCharactersName, map[string]string{"text": "hello"})

	for _, path := range []string{charcount.PathMCP, charcount.PathEdge} {
		b.Run(strings.TrimPrefix(path, "/"), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Accept", "application/json, text/event-stream")
				rec := httptest.NewRecorder()
				app.Handler().ServeHTTP(rec, req)
				if rec.Code != http.StatusOK {
					b.Fatalf("status = %d", rec.Code)
				}
			}
		})
	}
}
