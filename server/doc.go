// Package server provides the tool registry behind the MCP endpoint.
//
// Tools are declared with a fluent builder and handed to New, which freezes
// the registry and composes the middleware chain once:
//
//	type Input struct {
//	    Text string `json:"text" jsonschema:"required"`
//	}
//
//	srv, err := server.New(server.Info{Name: "char-counter-server", Version: "1.0.0"},
//	    server.WithTools(
//	        server.NewTool("countCharacters").
//	            Description("Count characters in text").
//	            ReadOnly().
//	            ValidateInput().
//	            Handler(func(ctx context.Context, in Input) (string, error) {
//	                return fmt.Sprint(len(in.Text)), nil
//	            }),
//	    ),
//	    server.WithMiddleware(middleware.Recover()),
//	)
//
// Server implements the transport handler contract through HandleRequest.
package server
