package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/charcount/protocol"
)

// Sentinel errors returned by Streamable.
var (
	ErrClosed           = errors.New("transport closed")
	ErrAlreadyConnected = errors.New("transport already connected")
	ErrNotConnected     = errors.New("transport not connected")
)

// Content types negotiated by the Streamable HTTP transport.
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
)

// Handler processes incoming MCP requests.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Inbound is one HTTP exchange as seen by a transport: the method, the
// request headers and the raw body (empty for GET and DELETE).
type Inbound struct {
	Method string
	Header http.Header
	Body   json.RawMessage
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
