// Package testutil provides testing utilities for the character counter.
//
// TestClient drives a transport.Handler in process. The HTTP helpers start
// an httptest server and connect a client.Client to it.
//
// Example usage:
//
//	func TestCount(t *testing.T) {
//	    tc := testutil.NewTestClient(t, testutil.NewServer(t))
//
//	    text, err := tc.CallTool("countCharacters", map[string]any{"text": "hello"})
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    if text != "The text has 5 characters." {
//	        t.Errorf("got %q", text)
//	    }
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/charcount/client"
	"github.com/felixgeelhaar/charcount/protocol"
	"github.com/felixgeelhaar/charcount/server"
	"github.com/felixgeelhaar/charcount/tools"
	"github.com/felixgeelhaar/charcount/transport"
)

// NewServer builds the character counter registry with extra options.
func NewServer(t testing.TB, opts ...server.Option) *server.Server {
	t.Helper()
	opts = append([]server.Option{server.WithTools(tools.NewCountCharacters(nil))}, opts...)
	srv, err := server.New(server.Info{Name: "char-counter-server", Version: "test"}, opts...)
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	return srv
}

// TestClient is an in-process client for a transport.Handler.
type TestClient struct {
	t       testing.TB
	handler transport.Handler
	reqID   int64
	mu      sync.Mutex
}

// NewTestClient creates a test client for handler and performs the
// initialize handshake.
func NewTestClient(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()

	tc := NewTestClientWithHandler(t, handler)
	if _, err := tc.Initialize(); err != nil {
		t.Fatalf("failed to initialize server: %v", err)
	}
	return tc
}

// NewTestClientWithHandler creates a test client without initializing.
// This is useful for testing middleware.
func NewTestClientWithHandler(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()
	return &TestClient{
		t:       t,
		handler: handler,
	}
}

func (tc *TestClient) nextID() json.RawMessage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return json.RawMessage(fmt.Sprintf("%d", tc.reqID))
}

// SendRequest sends a raw request and returns the response.
func (tc *TestClient) SendRequest(method string, params any) (*protocol.Response, error) {
	tc.t.Helper()

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsData = data
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      tc.nextID(),
		Method:  method,
		Params:  paramsData,
	}
	resp, err := tc.handler.HandleRequest(context.Background(), req)
	if pe, ok := protocol.AsError(err); ok {
		// Framed the way the transport writes it.
		return protocol.NewErrorResponse(req.ID, pe), nil
	}
	return resp, err
}

// call sends a request and decodes its result the way it would arrive on
// the wire.
func (tc *TestClient) call(method string, params, out any) error {
	tc.t.Helper()

	resp, err := tc.SendRequest(method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return json.Unmarshal(data, out)
}

// Initialize sends an initialize request to the server.
func (tc *TestClient) Initialize() (map[string]any, error) {
	tc.t.Helper()

	var result map[string]any
	err := tc.call(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.LatestVersion,
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "1.0.0",
		},
	}, &result)
	return result, err
}

// ListTools lists all available tools.
func (tc *TestClient) ListTools() ([]map[string]any, error) {
	tc.t.Helper()

	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := tc.call(protocol.MethodToolsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool calls a tool with the given arguments and returns the text result.
func (tc *TestClient) CallTool(name string, args any) (string, error) {
	tc.t.Helper()

	var result protocol.CallToolResult
	if err := tc.call(protocol.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	}, &result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty content array")
	}
	return result.Text(), nil
}

// CallToolRaw calls a tool and returns the raw response. JSON-RPC errors are
// in resp.Error; only failures the transport would turn into a 500 are
// returned as err.
func (tc *TestClient) CallToolRaw(name string, args any) (*protocol.Response, error) {
	tc.t.Helper()

	return tc.SendRequest(protocol.MethodToolsCall, map[string]any{
		"name":      name,
		"arguments": args,
	})
}

// Ping sends a ping request.
func (tc *TestClient) Ping() error {
	tc.t.Helper()

	var result map[string]any
	return tc.call(protocol.MethodPing, nil, &result)
}

// AssertToolExists asserts that a tool with the given name exists.
func (tc *TestClient) AssertToolExists(name string) {
	tc.t.Helper()

	list, err := tc.ListTools()
	if err != nil {
		tc.t.Fatalf("ListTools failed: %v", err)
	}
	for _, tool := range list {
		if tool["name"] == name {
			return
		}
	}
	tc.t.Errorf("tool %q not found", name)
}

// NewHTTPServer starts h on an httptest server that is closed on cleanup.
func NewHTTPServer(t testing.TB, h http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

// NewHTTPClient returns an initialized client for url. The client is
// closed on cleanup.
func NewHTTPClient(t testing.TB, url string, opts ...client.Option) *client.Client {
	t.Helper()
	c := client.New(client.NewHTTPTransport(url), opts...)
	if _, err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// HTTPResult is a fully read HTTP response.
type HTTPResult struct {
	Status int
	Header http.Header
	Body   string
}

// Do sends a raw request with the headers a Streamable HTTP client sends.
func Do(t testing.TB, method, url, body string) HTTPResult {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return HTTPResult{Status: res.StatusCode, Header: res.Header, Body: string(data)}
}

// CallBody returns a tools/call request body.
func CallBody(id int, name string, args any) string {
	data, _ := json.Marshal(map[string]any{
		"jsonrpc": protocol.JSONRPCVersion,
		"id":      id,
		"method":  protocol.MethodToolsCall,
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	})
	return string(data)
}
