package host

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/charcount/transport"
)

// EdgeRequest is a fully buffered request, the shape edge runtimes hand to
// per-method handlers.
type EdgeRequest struct {
	Method     string
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// EdgeResponse is a fully buffered response.
type EdgeResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Send copies the response to w.
func (r *EdgeResponse) Send(w http.ResponseWriter) {
	for k, v := range r.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// Edge handles a buffered request. Event streams opened by GET end right
// after their headers because a buffered response cannot stay open.
func (a *Adapter) Edge(ctx context.Context, req *EdgeRequest) *EdgeResponse {
	b := newBufferBinding(ctx, req.Method, req.Header, req.Body, req.RemoteAddr)
	a.with(func(o *transport.StreamableOptions) { o.HoldStream = false }).Serve(b)
	return &EdgeResponse{
		Status: b.status,
		Header: b.respHeader,
		Body:   b.out.Bytes(),
	}
}

// EdgeRouter routes each supported method to its own handler, the way edge
// frameworks export GET, POST, DELETE and OPTIONS. Any other method reaches
// the adapter through MethodNotAllowed and gets a 405 with Allow.
func EdgeRouter(a *Adapter) http.Handler {
	handle := func(w http.ResponseWriter, r *http.Request) {
		req := &EdgeRequest{
			Method:     r.Method,
			Header:     r.Header,
			RemoteAddr: r.RemoteAddr,
		}
		if r.Body != nil {
			// One byte past the limit lets the adapter see the overflow.
			req.Body, _ = io.ReadAll(io.LimitReader(r.Body, a.bodyLimit()+1))
		}
		a.Edge(r.Context(), req).Send(w)
	}

	r := chi.NewRouter()
	r.Get("/", handle)
	r.Post("/", handle)
	r.Delete("/", handle)
	r.Options("/", handle)
	r.MethodNotAllowed(handle)
	return r
}

func (a *Adapter) bodyLimit() int64 {
	if a.maxBody <= 0 {
		return DefaultMaxBodyBytes
	}
	return a.maxBody
}
