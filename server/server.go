package server

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/protocol"
)

// ErrDuplicateTool is returned by New when two tools share a name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Info contains server metadata exposed to clients.
type Info struct {
	Name    string
	Version string
}

// ToolInfo represents metadata about a registered tool.
type ToolInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema any              `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithTools registers tools. Builders are finalized by New.
func WithTools(tools ...*ToolBuilder) Option {
	return func(s *Server) {
		s.builders = append(s.builders, tools...)
	}
}

// WithMiddleware adds middleware around method dispatch. The first
// middleware is outermost.
func WithMiddleware(m ...middleware.Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, m...)
	}
}

// WithInstructions sets the usage instructions returned from initialize.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// Server is an immutable tool registry. It is safe for concurrent use
// because nothing changes after New returns.
type Server struct {
	info         Info
	instructions string
	builders     []*ToolBuilder
	middleware   []middleware.Middleware

	tools  []*Tool
	byName map[string]*Tool
	handle middleware.HandlerFunc
}

// New builds a server from its options.
func New(info Info, opts ...Option) (*Server, error) {
	s := &Server{
		info:   info,
		byName: make(map[string]*Tool),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, b := range s.builders {
		t, err := b.Build()
		if err != nil {
			return nil, err
		}
		if _, ok := s.byName[t.name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.name)
		}
		s.byName[t.name] = t
		s.tools = append(s.tools, t)
	}
	s.builders = nil
	sort.Slice(s.tools, func(i, j int) bool { return s.tools[i].name < s.tools[j].name })

	s.handle = middleware.Chain(s.middleware...)(s.dispatch)
	return s, nil
}

// Info returns the server info.
func (s *Server) Info() Info {
	return s.info
}

// Instructions returns the instructions sent to clients on initialize.
func (s *Server) Instructions() string {
	return s.instructions
}

// Tools returns info about all registered tools, sorted by name.
func (s *Server) Tools() []ToolInfo {
	result := make([]ToolInfo, 0, len(s.tools))
	for _, t := range s.tools {
		result = append(result, t.Info())
	}
	return result
}

// Tool retrieves a tool by name.
func (s *Server) Tool(name string) (*Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// HandleRequest runs one JSON-RPC request through the middleware chain and
// method dispatch. Notifications produce a nil response.
func (s *Server) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return s.handle(ctx, req)
}
