package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// nullID is the id carried by responses that cannot be correlated to a request.
var nullID = json.RawMessage("null")

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification returns true if this request has no ID (is a notification).
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC 2.0 response. ID is always serialized;
// a nil ID is written as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse creates a successful response.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}

// NewErrorEnvelope builds the uncorrelated internal error body returned when a
// request fails outside of protocol handling.
func NewErrorEnvelope(msg string) *Response {
	return NewErrorResponse(nil, NewInternalError(msg))
}

// Message is any inbound JSON-RPC message: a request, a notification or a
// response to a server-initiated request.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsRequest reports whether the message expects a response.
func (m *Message) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsNotification reports whether the message is a notification.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse reports whether the message answers a server-initiated request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && (len(m.Result) > 0 || m.Error != nil)
}

// Request converts a request or notification message into a Request.
func (m *Message) Request() *Request {
	return &Request{
		JSONRPC: m.JSONRPC,
		ID:      m.ID,
		Method:  m.Method,
		Params:  m.Params,
	}
}

// ErrEmptyBatch is returned by ParseMessages for an empty JSON array.
var ErrEmptyBatch = errors.New("empty batch")

// ParseMessages decodes a single JSON-RPC message or a batch.
// batch reports whether the body was an array. Each message must declare
// jsonrpc 2.0 and be either a request/notification or a response.
func ParseMessages(body json.RawMessage) (msgs []*Message, batch bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, NewParseError("Parse error: empty body")
	}

	if trimmed[0] == '[' {
		batch = true
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, true, NewParseError("Parse error: Invalid JSON-RPC message")
		}
		if len(msgs) == 0 {
			return nil, true, NewInvalidRequest("Invalid Request: " + ErrEmptyBatch.Error())
		}
	} else {
		var m Message
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, false, NewParseError("Parse error: Invalid JSON-RPC message")
		}
		msgs = []*Message{&m}
	}

	for _, m := range msgs {
		if m == nil || m.JSONRPC != JSONRPCVersion {
			return nil, batch, NewInvalidRequest("Invalid Request: jsonrpc must be \"2.0\"")
		}
		if m.Method == "" && !m.IsResponse() {
			return nil, batch, NewInvalidRequest("Invalid Request: message has neither method nor result")
		}
	}
	return msgs, batch, nil
}

// Summary is a best-effort description of an inbound body used for request logs.
type Summary struct {
	Method string
	Tool   string
}

// Peek extracts the JSON-RPC method and, for tools/call, the tool name from a
// body without validating it. Batches report their first message.
func Peek(body json.RawMessage) Summary {
	trimmed := bytes.TrimSpace(body)
	var m struct {
		Method string `json:"method"`
		Params struct {
			Name string `json:"name"`
		} `json:"params"`
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil || len(batch) == 0 {
			return Summary{}
		}
		trimmed = batch[0]
	}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return Summary{}
	}
	s := Summary{Method: m.Method}
	if m.Method == MethodToolsCall {
		s.Tool = m.Params.Name
	}
	return s
}
