package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/felixgeelhaar/charcount/protocol"
	"github.com/felixgeelhaar/charcount/schema"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Tool represents a callable function exposed via MCP.
type Tool struct {
	name          string
	description   string
	annotations   *ToolAnnotations
	inputType     reflect.Type
	inputSchema   *schema.Schema
	validateInput bool
	handler       reflect.Value
	hasContext    bool
}

// Name returns the tool name.
func (t *Tool) Name() string { return t.name }

// InputSchema returns the JSON Schema generated from the handler's input type.
func (t *Tool) InputSchema() *schema.Schema { return t.inputSchema }

// Info returns the tools/list entry for the tool.
func (t *Tool) Info() ToolInfo {
	return ToolInfo{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.inputSchema,
		Annotations: t.annotations,
	}
}

// ToolBuilder provides a fluent API for building tools. The first error
// sticks and is reported by Build.
type ToolBuilder struct {
	tool *Tool
	err  error
}

// NewTool starts building a tool with the given name.
func NewTool(name string) *ToolBuilder {
	b := &ToolBuilder{tool: &Tool{name: name}}
	if name == "" {
		b.err = errors.New("tool name is required")
	}
	return b
}

// Description sets the tool description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.tool.description = desc
	return b
}

// ValidateInput enables validation of arguments against the generated
// schema before the handler is called. Failures are reported as invalid params.
func (b *ToolBuilder) ValidateInput() *ToolBuilder {
	if b.err != nil {
		return b
	}
	b.tool.validateInput = true
	return b
}

// Handler sets the tool handler function.
// Handler signature must be one of:
//   - func(input T) (R, error)
//   - func(ctx context.Context, input T) (R, error)
func (b *ToolBuilder) Handler(fn any) *ToolBuilder {
	if b.err != nil {
		return b
	}
	if err := b.bindHandler(fn); err != nil {
		b.err = fmt.Errorf("tool %s: %w", b.tool.name, err)
	}
	return b
}

// Build returns the finished tool.
func (b *ToolBuilder) Build() (*Tool, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.tool.handler.IsValid() {
		return nil, fmt.Errorf("tool %s: handler is required", b.tool.name)
	}
	return b.tool, nil
}

func (b *ToolBuilder) bindHandler(fn any) error {
	if fn == nil {
		return errors.New("handler must be a function, got nil")
	}
	fnType := reflect.TypeOf(fn)
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("handler must be a function, got %s", fnType.Kind())
	}

	numIn := fnType.NumIn()
	if numIn < 1 || numIn > 2 {
		return fmt.Errorf("handler must have 1 or 2 parameters, got %d", numIn)
	}
	inputIdx := 0
	if numIn == 2 {
		if !fnType.In(0).Implements(contextType) {
			return errors.New("first parameter must be context.Context when using 2 parameters")
		}
		b.tool.hasContext = true
		inputIdx = 1
	}

	if fnType.NumOut() != 2 {
		return fmt.Errorf("handler must return (result, error), got %d return values", fnType.NumOut())
	}
	if !fnType.Out(1).Implements(errorType) {
		return errors.New("second return value must be error")
	}

	inputType := fnType.In(inputIdx)
	if inputType.Kind() == reflect.Ptr {
		return errors.New("input parameter must be a value type")
	}
	inputSchema, err := schema.GenerateFromType(inputType)
	if err != nil {
		return fmt.Errorf("generate input schema: %w", err)
	}

	b.tool.inputType = inputType
	b.tool.inputSchema = inputSchema
	b.tool.handler = reflect.ValueOf(fn)
	return nil
}

// Execute runs the tool handler with the given JSON arguments.
func (t *Tool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	if t.validateInput {
		if err := t.inputSchema.Validate(input); err != nil {
			return nil, protocol.NewInvalidParams(fmt.Sprintf("Invalid params: %v", err))
		}
	}

	inputPtr := reflect.New(t.inputType)
	if err := json.Unmarshal(input, inputPtr.Interface()); err != nil {
		return nil, protocol.NewInvalidParams(fmt.Sprintf("Invalid params: %v", err))
	}

	args := make([]reflect.Value, 0, 2)
	if t.hasContext {
		args = append(args, reflect.ValueOf(ctx))
	}
	args = append(args, inputPtr.Elem())

	results := t.handler.Call(args)
	if errVal := results[1].Interface(); errVal != nil {
		return nil, errVal.(error)
	}
	return results[0].Interface(), nil
}
