// Package protocol defines the MCP JSON-RPC 2.0 message types and error codes.
//
// # Messages
//
// Inbound bodies are decoded with ParseMessages, which accepts a single
// message or a batch and classifies each entry:
//
//	msgs, batch, err := protocol.ParseMessages(body)
//	for _, m := range msgs {
//	    if m.IsRequest() {
//	        // dispatch m.Request()
//	    }
//	}
//
// Responses always carry an id; failures that cannot be tied to a request use
// NewErrorEnvelope, which serializes as
//
//	{"jsonrpc":"2.0","error":{"code":-32603,"message":"..."},"id":null}
//
// # Error Codes
//
// Standard JSON-RPC 2.0 error codes are defined as constants:
//
//	CodeParseError     = -32700  // Invalid JSON
//	CodeInvalidRequest = -32600  // Invalid Request object
//	CodeMethodNotFound = -32601  // Method not found
//	CodeInvalidParams  = -32602  // Invalid method parameters
//	CodeInternalError  = -32603  // Internal server error
//
// ErrorMessage normalizes arbitrary failure values (including recovered
// panics) into a non-empty client-facing message.
package protocol
