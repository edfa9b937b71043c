// Package schema generates JSON Schema for tool inputs and validates
// arguments against it.
package schema

import (
	"reflect"
	"strings"
)

// Schema represents the subset of JSON Schema used for tool input descriptions.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
}

// Generate creates a JSON Schema from a Go value.
func Generate(v any) (*Schema, error) {
	return GenerateFromType(reflect.TypeOf(v))
}

// GenerateFromType creates a JSON Schema from a reflect.Type.
func GenerateFromType(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		return structSchema(t)
	case reflect.String:
		return &Schema{Type: typeString}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: typeInteger}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: typeNumber}, nil
	case reflect.Bool:
		return &Schema{Type: typeBoolean}, nil
	case reflect.Slice, reflect.Array:
		items, err := GenerateFromType(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: typeArray, Items: items}, nil
	case reflect.Map:
		return &Schema{Type: typeObject}, nil
	default:
		return &Schema{}, nil
	}
}

func structSchema(t reflect.Type) (*Schema, error) {
	s := &Schema{
		Type:       typeObject,
		Properties: make(map[string]*Schema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, skip := jsonName(field)
		if skip {
			continue
		}

		prop, err := GenerateFromType(field.Type)
		if err != nil {
			return nil, err
		}
		if applyTag(field.Tag.Get("jsonschema"), prop) {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = prop
	}

	return s, nil
}

func jsonName(field reflect.StructField) (name string, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ = strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, false
}

// applyTag reads a jsonschema struct tag into prop and reports whether the
// field is required. Descriptions run to the end of the tag so they may
// contain commas.
func applyTag(tag string, prop *Schema) (required bool) {
	for tag != "" {
		var part string
		if strings.HasPrefix(strings.TrimSpace(tag), "description=") {
			part, tag = strings.TrimSpace(tag), ""
		} else {
			part, tag, _ = strings.Cut(tag, ",")
			part = strings.TrimSpace(part)
		}

		switch {
		case part == "required":
			required = true
		case strings.HasPrefix(part, "description="):
			prop.Description = strings.TrimPrefix(part, "description=")
		case strings.HasPrefix(part, "enum="):
			for _, v := range strings.Split(strings.TrimPrefix(part, "enum="), "|") {
				prop.Enum = append(prop.Enum, v)
			}
		}
	}
	return required
}
