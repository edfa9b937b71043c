package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/felixgeelhaar/charcount/protocol"
)

// maxErrorBody bounds how much of a non-JSON-RPC error body is kept.
const maxErrorBody = 4 << 10

// StatusError is returned for HTTP failures that carry no JSON-RPC error,
// such as the 400 and 413 body rejections.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) {
		t.header.Add(key, value)
	}
}

// HTTPTransport speaks MCP Streamable HTTP. Each message is one POST; the
// reply may be a JSON body or an event stream.
type HTTPTransport struct {
	url    string
	client *http.Client
	header http.Header

	mu        sync.Mutex
	sessionID string
	closed    bool
}

// NewHTTPTransport creates a transport that posts to url.
func NewHTTPTransport(url string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		url:    url,
		client: http.DefaultClient,
		header: http.Header{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the session id assigned by the server, if any.
func (t *HTTPTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Send posts req and waits for its response.
func (t *HTTPTransport) Send(ctx context.Context, req *protocol.Request) (json.RawMessage, error) {
	res, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, decodeFailure(res)
	}

	resp, err := readResponse(res, req.ID)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// Notify posts a notification. The server answers 202 without a body.
func (t *HTTPTransport) Notify(ctx context.Context, req *protocol.Request) error {
	res, err := t.post(ctx, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusAccepted && res.StatusCode != http.StatusOK {
		return decodeFailure(res)
	}
	return nil
}

// Close ends the session with a DELETE when the server assigned one.
// Closing twice is a no-op.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessionID := t.sessionID
	t.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequest(http.MethodDelete, t.url, nil)
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	t.setHeaders(req.Header, sessionID)
	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return decodeFailure(res)
	}
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, req *protocol.Request) (*http.Response, error) {
	t.mu.Lock()
	closed, sessionID := t.closed, t.sessionID
	t.mu.Unlock()
	if closed {
		return nil, errors.New("transport closed")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	t.setHeaders(httpReq.Header, sessionID)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	res, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", req.Method, err)
	}
	if id := res.Header.Get(protocol.HeaderSessionID); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}
	return res, nil
}

func (t *HTTPTransport) setHeaders(h http.Header, sessionID string) {
	for k, v := range t.header {
		h[k] = append([]string(nil), v...)
	}
	if sessionID != "" {
		h.Set(protocol.HeaderSessionID, sessionID)
	}
}

// response is a JSON-RPC response with its result left undecoded.
type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *protocol.Error `json:"error"`
}

// readResponse reads a JSON body or scans an event stream for the message
// answering id.
func readResponse(res *http.Response, id json.RawMessage) (*response, error) {
	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		var resp response
		if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &resp, nil
	}

	var data strings.Builder
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(v, " "))
			continue
		}
		if line != "" || data.Len() == 0 {
			continue
		}
		var resp response
		err := json.Unmarshal([]byte(data.String()), &resp)
		data.Reset()
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		if bytes.Equal(resp.ID, id) {
			return &resp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	return nil, fmt.Errorf("event stream ended without a response to %s", id)
}

// decodeFailure turns a non-200 reply into an error. JSON-RPC envelopes
// become *protocol.Error; anything else becomes *StatusError.
func decodeFailure(res *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))

	var envelope response
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
		return envelope.Error
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return &StatusError{StatusCode: res.StatusCode, Message: body.Error}
	}
	return &StatusError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(data))}
}
