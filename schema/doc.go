// Package schema provides JSON Schema generation from Go types.
//
// Tool input structs are described with json and jsonschema tags:
//
//	type Input struct {
//	    Text string `json:"text" jsonschema:"required,description=Text to measure"`
//	}
//
//	s, err := schema.Generate(Input{})
//
// The jsonschema tag understands "required", "enum=a|b|c" and
// "description=...". A description must come last; it extends to the end
// of the tag.
//
// Validate checks raw JSON arguments against a generated schema and returns
// ValidationErrors describing every violation with its JSON path.
package schema
