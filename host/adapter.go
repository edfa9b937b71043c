package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
	"github.com/felixgeelhaar/charcount/transport"
)

// Allow is the Allow header sent with 405 responses.
const Allow = "GET, POST, DELETE, OPTIONS"

// DefaultMaxBodyBytes bounds POST bodies unless WithMaxBodyBytes says otherwise.
const DefaultMaxBodyBytes = 4 * middleware.MB

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger for request lifecycle lines.
func WithLogger(l middleware.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithName labels log lines with the entry point name.
func WithName(name string) Option {
	return func(a *Adapter) {
		a.name = name
	}
}

// WithCORS sets the cross-origin policy.
func WithCORS(c transport.CORSConfig) Option {
	return func(a *Adapter) {
		a.cors = c
	}
}

// WithTransportOptions sets the options for each per-request transport.
func WithTransportOptions(o transport.StreamableOptions) Option {
	return func(a *Adapter) {
		a.transportOpts = o
	}
}

// WithMaxBodyBytes limits POST bodies. Larger bodies get 413.
func WithMaxBodyBytes(n int64) Option {
	return func(a *Adapter) {
		a.maxBody = n
	}
}

// WithShutdownManager rejects requests with 503 once draining starts and
// lets shutdown wait for the ones in flight.
func WithShutdownManager(sm *transport.ShutdownManager) Option {
	return func(a *Adapter) {
		a.shutdown = sm
	}
}

// Adapter bridges one inbound request to a Handler through a fresh
// transport.Streamable and finalizes the response: CORS headers, error
// envelopes and transport teardown.
type Adapter struct {
	handler       transport.Handler
	logger        middleware.Logger
	name          string
	cors          transport.CORSConfig
	transportOpts transport.StreamableOptions
	maxBody       int64
	shutdown      *transport.ShutdownManager

	newTransport func(transport.StreamableOptions) *transport.Streamable
}

// NewAdapter creates an adapter for handler, which is shared by every request.
func NewAdapter(handler transport.Handler, opts ...Option) *Adapter {
	a := &Adapter{
		handler:      handler,
		logger:       middleware.NopLogger{},
		name:         "mcp",
		cors:         transport.DefaultCORSConfig(),
		maxBody:      DefaultMaxBodyBytes,
		newTransport: transport.NewStreamable,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ServeHTTP serves the Node-style entry point: one handler for every method.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Serve(&httpBinding{w: w, r: r})
}

// Serve handles one request on b.
func (a *Adapter) Serve(b Binding) {
	start := time.Now()
	rw := &responseWriter{b: b}
	a.cors.Apply(rw.Header(), b.Header().Get("Origin"))

	method := b.Method()
	fields := []middleware.Field{
		middleware.F("entry", a.name),
		middleware.F("http_method", method),
	}

	// Neither short-circuit creates a transport, so both are answered even
	// while draining.
	switch method {
	case http.MethodOptions:
		a.cors.ApplyPreflight(rw.Header())
		rw.WriteHeader(http.StatusNoContent)
		a.logger.Info("preflight answered", append(fields, middleware.F("status", http.StatusNoContent))...)
		return
	case http.MethodGet, http.MethodPost, http.MethodDelete:
	default:
		rw.Header().Set("Allow", Allow)
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = fmt.Fprintf(rw, "Method %s Not Allowed", method)
		a.logger.Warn("method not allowed", append(fields, middleware.F("status", http.StatusMethodNotAllowed))...)
		return
	}

	if a.shutdown != nil {
		release, ok := a.shutdown.Track()
		if !ok {
			a.logger.Warn("request refused while draining", fields...)
			a.writeJSON(rw, http.StatusServiceUnavailable,
				protocol.NewErrorEnvelope("server is shutting down"))
			return
		}
		defer release()
	}

	ctx := a.requestContext(b)
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, middleware.F("request_id", id))
	}

	var body json.RawMessage
	if method == http.MethodPost {
		var berr *bodyError
		body, berr = a.readBody(b.Body())
		if berr != nil {
			a.logger.Warn("request rejected", append(fields, middleware.F("error", berr.msg))...)
			a.writeJSON(rw, berr.status, map[string]string{"error": berr.msg})
			return
		}
		peek := protocol.Peek(body)
		fields = append(fields, middleware.F("rpc_method", peek.Method))
		if peek.Tool != "" {
			fields = append(fields, middleware.F("tool", peek.Tool))
		}
	}
	a.logger.Info("request received", fields...)

	err := a.handle(ctx, rw, &transport.Inbound{
		Method: method,
		Header: b.Header(),
		Body:   body,
	}, fields)

	fields = append(fields, middleware.F("duration", time.Since(start)))
	if err != nil {
		fields = append(fields, middleware.F("error", err.Error()))
		if ctx.Err() != nil {
			// The client went away; nobody is left to read an envelope.
			a.logger.Debug("request abandoned", fields...)
			return
		}
		if rw.committed {
			a.logger.Error("request failed after response was committed", fields...)
			return
		}
		a.logger.Error("request failed", fields...)
		a.writeJSON(rw, http.StatusInternalServerError,
			protocol.NewErrorEnvelope(protocol.ErrorMessage(err)))
		return
	}
	a.logger.Info("request completed", append(fields, middleware.F("status", rw.status))...)
}

// handle runs steps that may fail: creating, connecting and driving the
// transport. The transport is always closed before handle returns.
func (a *Adapter) handle(ctx context.Context, rw *responseWriter, in *transport.Inbound, fields []middleware.Field) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &middleware.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	t := a.newTransport(a.transportOpts)
	defer func() {
		if cerr := t.Close(); cerr != nil {
			a.logger.Error("transport close failed", append(fields, middleware.F("error", cerr.Error()))...)
		}
	}()

	// Held GET streams also end when draining starts so shutdown is not
	// stuck waiting on idle clients.
	var drain <-chan struct{}
	if a.shutdown != nil && in.Method == http.MethodGet {
		drain = a.shutdown.Draining()
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-drain:
		case <-t.Done():
			return
		}
		_ = t.Close()
	}()

	if err := t.Connect(a.handler); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	return t.HandleRequest(ctx, rw, in)
}

func (a *Adapter) requestContext(b Binding) context.Context {
	ctx := b.Context()
	if id := chimw.GetReqID(ctx); id != "" && middleware.RequestIDFromContext(ctx) == "" {
		ctx = middleware.ContextWithRequestID(ctx, id)
	}
	meta := protocol.RequestMeta{}
	if addr := b.RemoteAddr(); addr != "" {
		meta[protocol.MetaRemoteAddr] = addr
	}
	if ua := b.Header().Get("User-Agent"); ua != "" {
		meta[protocol.MetaUserAgent] = ua
	}
	return protocol.ContextWithRequestMeta(ctx, meta)
}

// bodyError rejects a POST body before any transport exists.
type bodyError struct {
	status int
	msg    string
}

func (e *bodyError) Error() string { return e.msg }

var (
	errInvalidJSON  = &bodyError{status: http.StatusBadRequest, msg: "Invalid JSON body"}
	errBodyTooLarge = &bodyError{status: http.StatusRequestEntityTooLarge, msg: "Request body too large"}
)

// readBody returns the POST body, which must be valid JSON within the limit.
func (a *Adapter) readBody(r io.Reader) (json.RawMessage, *bodyError) {
	if r == nil {
		return nil, errInvalidJSON
	}
	limit := a.bodyLimit()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errInvalidJSON
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	if !json.Valid(data) {
		return nil, errInvalidJSON
	}
	return data, nil
}

func (a *Adapter) writeJSON(rw *responseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("encode response failed", middleware.F("error", err.Error()))
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if _, err := rw.Write(data); err != nil {
		a.logger.Warn("write response failed", middleware.F("error", err.Error()))
	}
}

// with returns a copy of a whose transports use modified options.
func (a *Adapter) with(modify func(*transport.StreamableOptions)) *Adapter {
	c := *a
	modify(&c.transportOpts)
	return &c
}
