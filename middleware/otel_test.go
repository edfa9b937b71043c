package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/charcount/protocol"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTel(t *testing.T) {
	t.Run("creates a server span per request", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, "ok"), nil
		})

		req := &protocol.Request{
			ID:     json.RawMessage("1"),
			Method: "tools/call",
			Params: json.RawMessage(`{"name":"countCharacters"}`),
		}
		if _, err := handler(ContextWithRequestID(context.Background(), "rid"), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		span := spans[0]
		if span.Name != "mcp.tools/call" {
			t.Errorf("span name = %q", span.Name)
		}
		if span.Status.Code != codes.Ok {
			t.Errorf("status = %v, want Ok", span.Status.Code)
		}
		if v, _ := spanAttr(span.Attributes, "mcp.tool"); v.AsString() != "countCharacters" {
			t.Errorf("mcp.tool = %q", v.AsString())
		}
		if v, _ := spanAttr(span.Attributes, "mcp.request_id"); v.AsString() != "rid" {
			t.Errorf("mcp.request_id = %q", v.AsString())
		}
		if v, _ := spanAttr(span.Attributes, "service.name"); v.AsString() != "char-counter-server" {
			t.Errorf("service.name = %q", v.AsString())
		}
	})

	t.Run("records protocol error code", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			return nil, protocol.NewNotFound("tool not found")
		})

		_, _ = handler(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"})

		span := exporter.GetSpans()[0]
		if span.Status.Code != codes.Error {
			t.Errorf("status = %v, want Error", span.Status.Code)
		}
		v, ok := spanAttr(span.Attributes, "mcp.error_code")
		if !ok || v.AsInt64() != int64(protocol.CodeNotFound) {
			t.Errorf("mcp.error_code = %v", v.AsInt64())
		}
	})

	t.Run("maps plain errors to internal error", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			return nil, errors.New("boom")
		})

		_, _ = handler(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"})

		v, _ := spanAttr(exporter.GetSpans()[0].Attributes, "mcp.error_code")
		if v.AsInt64() != int64(protocol.CodeInternalError) {
			t.Errorf("mcp.error_code = %d", v.AsInt64())
		}
	})

	t.Run("records error responses", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp))(func(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewErrorResponse(req.ID, protocol.NewInvalidParams("bad")), nil
		})

		_, _ = handler(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"})

		v, _ := spanAttr(exporter.GetSpans()[0].Attributes, "mcp.error_code")
		if v.AsInt64() != int64(protocol.CodeInvalidParams) {
			t.Errorf("mcp.error_code = %d", v.AsInt64())
		}
	})

	t.Run("skips configured methods", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp), WithOTelSkipMethods("ping"))(func(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
			return &protocol.Response{ID: req.ID}, nil
		})

		_, _ = handler(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "ping"})

		if n := len(exporter.GetSpans()); n != 0 {
			t.Errorf("expected 0 spans for skipped method, got %d", n)
		}
	})

	t.Run("uses custom service name", func(t *testing.T) {
		exporter, tp := newTestTracer(t)
		handler := OTel(WithTracerProvider(tp), WithOTelServiceName("counter"))(func(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
			return &protocol.Response{ID: req.ID}, nil
		})

		_, _ = handler(context.Background(), &protocol.Request{ID: json.RawMessage("1"), Method: "tools/list"})

		if v, _ := spanAttr(exporter.GetSpans()[0].Attributes, "service.name"); v.AsString() != "counter" {
			t.Errorf("service.name = %q", v.AsString())
		}
	})

	t.Run("records request and error metrics", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer mp.Shutdown(context.Background())

		calls := 0
		handler := OTel(WithMeterProvider(mp))(func(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
			calls++
			if calls == 2 {
				return nil, protocol.NewInvalidParams("bad")
			}
			return &protocol.Response{ID: req.ID}, nil
		})

		req := &protocol.Request{ID: json.RawMessage("1"), Method: "tools/call"}
		_, _ = handler(context.Background(), req)
		_, _ = handler(context.Background(), req)

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			t.Fatalf("collect: %v", err)
		}

		sums := map[string]int64{}
		var sawHistogram bool
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				switch data := m.Data.(type) {
				case metricdata.Sum[int64]:
					for _, dp := range data.DataPoints {
						sums[m.Name] += dp.Value
					}
				case metricdata.Histogram[float64]:
					sawHistogram = m.Name == "mcp.server.request.duration"
				}
			}
		}
		if sums["mcp.server.requests"] != 2 {
			t.Errorf("requests = %d, want 2", sums["mcp.server.requests"])
		}
		if sums["mcp.server.errors"] != 1 {
			t.Errorf("errors = %d, want 1", sums["mcp.server.errors"])
		}
		if !sawHistogram {
			t.Error("expected duration histogram")
		}
	})

	t.Run("uses global providers by default", func(t *testing.T) {
		if OTel() == nil {
			t.Fatal("expected non-nil middleware")
		}
	})
}
