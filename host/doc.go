// Package host binds the MCP endpoint to its hosting environments.
//
// An Adapter owns the per-request lifecycle: it applies CORS headers,
// short-circuits OPTIONS and unsupported methods, rejects malformed
// bodies, runs the exchange on a fresh transport.Streamable, turns failures
// into a JSON-RPC error envelope and always closes the transport.
//
// Three bindings feed it:
//   - Adapter.ServeHTTP, a single net/http handler for every method;
//   - EdgeRouter and Adapter.Edge, buffered request and response values
//     routed per method;
//   - WebSocketHandler, which runs each text frame as a POST.
package host
