package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/charcount/protocol"
)

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type listToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(req)
	case protocol.MethodInitialized:
		return nil, nil
	case protocol.MethodPing:
		return protocol.NewResponse(req.ID, struct{}{}), nil
	case protocol.MethodToolsList:
		return protocol.NewResponse(req.ID, listToolsResult{Tools: s.Tools()}), nil
	case protocol.MethodToolsCall:
		return s.handleToolsCall(ctx, req)
	default:
		if req.IsNotification() {
			return nil, nil
		}
		return nil, protocol.NewMethodNotFound("Method not found: " + req.Method)
	}
}

func (s *Server) handleInitialize(req *protocol.Request) (*protocol.Response, error) {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, protocol.NewInvalidParams(fmt.Sprintf("Invalid params: %v", err))
		}
	}

	result := initializeResult{
		ProtocolVersion: protocol.NegotiateVersion(params.ProtocolVersion),
		Capabilities: map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		ServerInfo:   serverInfo{Name: s.info.Name, Version: s.info.Version},
		Instructions: s.instructions,
	}
	return protocol.NewResponse(req.ID, result), nil
}

func (s *Server) handleToolsCall(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams(fmt.Sprintf("Invalid params: %v", err))
	}

	tool, ok := s.byName[params.Name]
	if !ok {
		return nil, protocol.NewInvalidParams("Unknown tool: " + params.Name)
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	out, err := tool.Execute(ctx, args)
	if err != nil {
		return nil, err
	}

	result, err := toCallToolResult(out)
	if err != nil {
		return nil, err
	}
	return protocol.NewResponse(req.ID, result), nil
}

// toCallToolResult wraps plain handler return values as a single text block.
func toCallToolResult(v any) (*protocol.CallToolResult, error) {
	switch r := v.(type) {
	case *protocol.CallToolResult:
		if r == nil {
			return protocol.NewTextResult(""), nil
		}
		return r, nil
	case protocol.CallToolResult:
		return &r, nil
	case string:
		return protocol.NewTextResult(r), nil
	case fmt.Stringer:
		return protocol.NewTextResult(r.String()), nil
	default:
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode tool result: %w", err)
		}
		return protocol.NewTextResult(string(data)), nil
	}
}
