package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/felixgeelhaar/charcount/protocol"
)

// StreamableOptions configures a Streamable transport.
type StreamableOptions struct {
	// SessionIDGenerator assigns the Mcp-Session-Id returned from
	// initialize. Nil runs the transport stateless.
	SessionIDGenerator func() string

	// JSONResponse answers POSTs with a plain JSON body instead of an
	// SSE stream.
	JSONResponse bool

	// HoldStream keeps GET event streams open until the client goes away
	// or the transport closes. Otherwise the stream ends right after the
	// headers are sent.
	HoldStream bool
}

// Streamable frames a single HTTP exchange according to the MCP Streamable
// HTTP transport. It is created per request and must not be shared.
type Streamable struct {
	opts StreamableOptions

	mu        sync.Mutex
	handler   Handler
	closed    bool
	sessionID string

	done      chan struct{}
	closeOnce sync.Once
}

// NewStreamable creates an unconnected transport.
func NewStreamable(opts StreamableOptions) *Streamable {
	return &Streamable{
		opts: opts,
		done: make(chan struct{}),
	}
}

// Connect binds the transport to handler. A transport connects once.
func (s *Streamable) Connect(handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.handler != nil:
		return ErrAlreadyConnected
	}
	s.handler = handler
	return nil
}

// Close releases the transport. It is safe to call more than once.
func (s *Streamable) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

// Done is closed when the transport closes.
func (s *Streamable) Done() <-chan struct{} {
	return s.done
}

// SessionID returns the session assigned by initialize or carried by the
// request, if any.
func (s *Streamable) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// HandleRequest answers one exchange on w. Protocol problems are written
// as HTTP and JSON-RPC errors and return nil. Any other failure is
// returned before anything is written to w.
func (s *Streamable) HandleRequest(ctx context.Context, w http.ResponseWriter, in *Inbound) error {
	s.mu.Lock()
	handler, closed := s.handler, s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if handler == nil {
		return ErrNotConnected
	}

	if id := in.Header.Get(protocol.HeaderSessionID); id != "" {
		s.mu.Lock()
		s.sessionID = id
		s.mu.Unlock()
		ctx = protocol.SetRequestMeta(ctx, protocol.MetaSessionID, id)
	}

	switch in.Method {
	case http.MethodPost:
		return s.handlePost(ctx, w, in, handler)
	case http.MethodGet:
		return s.handleGet(ctx, w, in)
	case http.MethodDelete:
		return s.handleDelete(w, in)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, protocol.NewConnectionError("Method not allowed."))
		return nil
	}
}

func (s *Streamable) handlePost(ctx context.Context, w http.ResponseWriter, in *Inbound, handler Handler) error {
	want := ContentTypeEventStream
	if s.opts.JSONResponse {
		want = ContentTypeJSON
	}
	if !accepts(in.Header, want) {
		writeError(w, http.StatusNotAcceptable,
			protocol.NewConnectionError("Not Acceptable: Client must accept "+want))
		return nil
	}
	if ct := in.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != ContentTypeJSON {
			writeError(w, http.StatusUnsupportedMediaType,
				protocol.NewConnectionError("Unsupported Media Type: Content-Type must be application/json"))
			return nil
		}
	}

	msgs, batch, err := protocol.ParseMessages(in.Body)
	if err != nil {
		pe, _ := protocol.AsError(err)
		writeError(w, http.StatusBadRequest, pe)
		return nil
	}

	inits, requests := 0, 0
	for _, m := range msgs {
		if m.Method == protocol.MethodInitialize {
			inits++
		}
		if m.IsRequest() {
			requests++
		}
	}
	if inits > 1 {
		writeError(w, http.StatusBadRequest,
			protocol.NewInvalidRequest("Invalid Request: Only one initialization request is allowed"))
		return nil
	}

	if inits == 1 && s.opts.SessionIDGenerator != nil {
		id := s.opts.SessionIDGenerator()
		s.mu.Lock()
		s.sessionID = id
		s.mu.Unlock()
		ctx = protocol.SetRequestMeta(ctx, protocol.MetaSessionID, id)
	}

	// Everything is dispatched before the first byte is written so that a
	// failure can still become a clean error response upstream.
	responses := make([]*protocol.Response, 0, requests)
	for _, m := range msgs {
		if m.IsResponse() {
			continue
		}
		req := m.Request()
		resp, err := handler.HandleRequest(ctx, req)
		if err != nil {
			pe, ok := protocol.AsError(err)
			if !ok {
				return err
			}
			if req.IsNotification() {
				continue
			}
			resp = protocol.NewErrorResponse(req.ID, pe)
		}
		if req.IsNotification() || resp == nil {
			continue
		}
		if resp.JSONRPC == "" {
			resp.JSONRPC = protocol.JSONRPCVersion
		}
		if len(resp.ID) == 0 {
			resp.ID = req.ID
		}
		responses = append(responses, resp)
	}

	if id := s.SessionID(); id != "" && s.opts.SessionIDGenerator != nil {
		w.Header().Set(protocol.HeaderSessionID, id)
	}

	if requests == 0 {
		w.WriteHeader(http.StatusAccepted)
		return nil
	}

	if s.opts.JSONResponse {
		var payload any = responses
		if !batch && len(responses) == 1 {
			payload = responses[0]
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		w.Header().Set("Content-Type", ContentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(data)
		return err
	}

	frames := make([][]byte, 0, len(responses))
	for _, resp := range responses {
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		frames = append(frames, data)
	}
	setStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	for _, data := range frames {
		if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
			return err
		}
		flush(w)
	}
	return nil
}

func (s *Streamable) handleGet(ctx context.Context, w http.ResponseWriter, in *Inbound) error {
	if !accepts(in.Header, ContentTypeEventStream) {
		writeError(w, http.StatusNotAcceptable,
			protocol.NewConnectionError("Not Acceptable: Client must accept text/event-stream"))
		return nil
	}

	setStreamHeaders(w.Header())
	if id := s.SessionID(); id != "" && s.opts.SessionIDGenerator != nil {
		w.Header().Set(protocol.HeaderSessionID, id)
	}
	w.WriteHeader(http.StatusOK)
	flush(w)

	if !s.opts.HoldStream {
		return nil
	}
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return nil
}

func (s *Streamable) handleDelete(w http.ResponseWriter, in *Inbound) error {
	if s.opts.SessionIDGenerator != nil && in.Header.Get(protocol.HeaderSessionID) == "" {
		writeError(w, http.StatusBadRequest,
			protocol.NewConnectionError("Bad Request: Mcp-Session-Id header is required"))
		return nil
	}
	if err := s.Close(); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

// accepts reports whether the Accept header admits contentType. A missing
// header admits everything.
func accepts(h http.Header, contentType string) bool {
	values := h.Values("Accept")
	if len(values) == 0 {
		return true
	}
	major, _, _ := strings.Cut(contentType, "/")
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if mt == contentType || mt == "*/*" || mt == major+"/*" {
				return true
			}
		}
	}
	return false
}

func setStreamHeaders(h http.Header) {
	h.Set("Content-Type", ContentTypeEventStream)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

func writeError(w http.ResponseWriter, status int, perr *protocol.Error) {
	if perr == nil {
		perr = protocol.NewInternalError(protocol.UnknownErrorMessage)
	}
	data, _ := json.Marshal(protocol.NewErrorResponse(nil, perr))
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
