package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	typeObject  = "object"
	typeArray   = "array"
	typeString  = "string"
	typeInteger = "integer"
	typeNumber  = "number"
	typeBoolean = "boolean"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Path    string // JSON path to the invalid field (e.g., "text")
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}

	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates JSON data against the schema.
// Returns nil if valid, or ValidationErrors if invalid.
func (s *Schema) Validate(data json.RawMessage) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid JSON: %s", err)}
	}
	return s.ValidateValue(value)
}

// ValidateValue validates a decoded JSON value against the schema.
func (s *Schema) ValidateValue(value any) error {
	var errs ValidationErrors
	s.validate("", value, &errs)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *Schema) validate(path string, value any, errs *ValidationErrors) {
	if s.Type == "" {
		return
	}
	if value == nil {
		errs.add(path, "expected %s, got null", s.Type)
		return
	}

	switch s.Type {
	case typeObject:
		s.validateObject(path, value, errs)
	case typeArray:
		s.validateArray(path, value, errs)
	case typeString:
		s.validateString(path, value, errs)
	case typeInteger:
		num, ok := value.(float64)
		if !ok {
			errs.add(path, "expected integer, got %s", jsonType(value))
		} else if num != float64(int64(num)) {
			errs.add(path, "expected integer, got decimal number")
		}
	case typeNumber:
		if _, ok := value.(float64); !ok {
			errs.add(path, "expected number, got %s", jsonType(value))
		}
	case typeBoolean:
		if _, ok := value.(bool); !ok {
			errs.add(path, "expected boolean, got %s", jsonType(value))
		}
	}
}

func (s *Schema) validateObject(path string, value any, errs *ValidationErrors) {
	obj, ok := value.(map[string]any)
	if !ok {
		errs.add(path, "expected object, got %s", jsonType(value))
		return
	}

	for _, name := range s.Required {
		if _, exists := obj[name]; !exists {
			errs.add(joinPath(path, name), "required field is missing")
		}
	}

	for name, prop := range s.Properties {
		if v, exists := obj[name]; exists {
			prop.validate(joinPath(path, name), v, errs)
		}
	}
}

func (s *Schema) validateArray(path string, value any, errs *ValidationErrors) {
	items, ok := value.([]any)
	if !ok {
		errs.add(path, "expected array, got %s", jsonType(value))
		return
	}
	if s.Items == nil {
		return
	}
	for i, item := range items {
		s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item, errs)
	}
}

func (s *Schema) validateString(path string, value any, errs *ValidationErrors) {
	str, ok := value.(string)
	if !ok {
		errs.add(path, "expected string, got %s", jsonType(value))
		return
	}
	if len(s.Enum) == 0 {
		return
	}
	for _, e := range s.Enum {
		if e == str {
			return
		}
	}
	errs.add(path, "value must be one of: %v", s.Enum)
}

func (e *ValidationErrors) add(path, format string, args ...any) {
	*e = append(*e, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// jsonType names the JSON type of a value produced by encoding/json.
func jsonType(v any) string {
	switch v.(type) {
	case map[string]any:
		return typeObject
	case []any:
		return typeArray
	case string:
		return typeString
	case float64:
		return typeNumber
	case bool:
		return typeBoolean
	default:
		return fmt.Sprintf("%T", v)
	}
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
