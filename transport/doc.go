// Package transport implements the MCP Streamable HTTP framing for a single
// request/response exchange, plus the CORS and shutdown plumbing around it.
//
// A Streamable is created per HTTP request, connected to a Handler (usually
// a *server.Server), asked to handle the exchange and then closed:
//
//	t := transport.NewStreamable(transport.StreamableOptions{JSONResponse: true})
//	defer t.Close()
//	if err := t.Connect(srv); err != nil {
//	    return err
//	}
//	err := t.HandleRequest(ctx, w, &transport.Inbound{
//	    Method: r.Method,
//	    Header: r.Header,
//	    Body:   body,
//	})
//
// POST bodies carry one JSON-RPC message or a batch. Responses are written
// as a JSON document or as "message" events on a text/event-stream,
// depending on StreamableOptions.JSONResponse. Requests carrying only
// notifications are acknowledged with 202. GET opens an event stream and
// DELETE ends the session.
//
// Errors that are *protocol.Error values are written as JSON-RPC error
// responses. Any other error returned by the handler is returned from
// HandleRequest before anything has been written, leaving the caller free
// to answer with its own error body.
package transport
