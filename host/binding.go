package host

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// Binding is what the Adapter needs from a hosting environment: the
// inbound request and a sink for the response. Context is done when the
// client goes away.
type Binding interface {
	Context() context.Context
	Method() string
	Header() http.Header
	Body() io.Reader
	RemoteAddr() string

	ResponseHeader() http.Header
	WriteStatus(code int)
	Write(p []byte) (int, error)
	Flush()
}

// httpBinding binds a net/http exchange.
type httpBinding struct {
	w http.ResponseWriter
	r *http.Request
}

func (b *httpBinding) Context() context.Context    { return b.r.Context() }
func (b *httpBinding) Method() string              { return b.r.Method }
func (b *httpBinding) Header() http.Header         { return b.r.Header }
func (b *httpBinding) Body() io.Reader             { return b.r.Body }
func (b *httpBinding) RemoteAddr() string          { return b.r.RemoteAddr }
func (b *httpBinding) ResponseHeader() http.Header { return b.w.Header() }
func (b *httpBinding) WriteStatus(code int)        { b.w.WriteHeader(code) }
func (b *httpBinding) Write(p []byte) (int, error) { return b.w.Write(p) }

func (b *httpBinding) Flush() {
	_ = http.NewResponseController(b.w).Flush()
}

// bufferBinding collects the response in memory. It backs the edge and
// WebSocket entry points, which hand back a complete response value.
type bufferBinding struct {
	ctx        context.Context
	method     string
	header     http.Header
	body       []byte
	remoteAddr string

	status     int
	respHeader http.Header
	out        bytes.Buffer
}

func newBufferBinding(ctx context.Context, method string, header http.Header, body []byte, remoteAddr string) *bufferBinding {
	if header == nil {
		header = http.Header{}
	}
	return &bufferBinding{
		ctx:        ctx,
		method:     method,
		header:     header,
		body:       body,
		remoteAddr: remoteAddr,
		status:     http.StatusOK,
		respHeader: http.Header{},
	}
}

func (b *bufferBinding) Context() context.Context    { return b.ctx }
func (b *bufferBinding) Method() string              { return b.method }
func (b *bufferBinding) Header() http.Header         { return b.header }
func (b *bufferBinding) Body() io.Reader             { return bytes.NewReader(b.body) }
func (b *bufferBinding) RemoteAddr() string          { return b.remoteAddr }
func (b *bufferBinding) ResponseHeader() http.Header { return b.respHeader }
func (b *bufferBinding) WriteStatus(code int)        { b.status = code }
func (b *bufferBinding) Write(p []byte) (int, error) { return b.out.Write(p) }
func (b *bufferBinding) Flush()                      {}

// responseWriter exposes a Binding as an http.ResponseWriter for the
// transport and records whether the response has been committed.
type responseWriter struct {
	b         Binding
	status    int
	committed bool
}

func (w *responseWriter) Header() http.Header {
	return w.b.ResponseHeader()
}

func (w *responseWriter) WriteHeader(code int) {
	if w.committed {
		return
	}
	w.committed = true
	w.status = code
	w.b.WriteStatus(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.b.Write(p)
}

func (w *responseWriter) Flush() {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	w.b.Flush()
}
