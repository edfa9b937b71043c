package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSchema_Validate(t *testing.T) {
	type Input struct {
		Text  string   `json:"text" jsonschema:"required"`
		Count int      `json:"count"`
		Tags  []string `json:"tags"`
		Mode  string   `json:"mode" jsonschema:"enum=fast|slow"`
	}
	s, err := Generate(Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantPath string
	}{
		{name: "valid input", input: `{"text":"hello"}`},
		{name: "empty string is valid", input: `{"text":""}`},
		{name: "missing required", input: `{}`, wantErr: true, wantPath: "text"},
		{name: "null text", input: `{"text":null}`, wantErr: true, wantPath: "text"},
		{name: "number for string", input: `{"text":42}`, wantErr: true, wantPath: "text"},
		{name: "decimal for integer", input: `{"text":"a","count":1.5}`, wantErr: true, wantPath: "count"},
		{name: "bad array item", input: `{"text":"a","tags":["x",1]}`, wantErr: true, wantPath: "tags[1]"},
		{name: "enum mismatch", input: `{"text":"a","mode":"medium"}`, wantErr: true, wantPath: "mode"},
		{name: "not an object", input: `"hello"`, wantErr: true},
		{name: "invalid json", input: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(json.RawMessage(tt.input))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantPath == "" {
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if verrs[0].Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", verrs[0].Path, tt.wantPath)
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := (ValidationErrors{}).Error(); got != "" {
			t.Errorf("Error() = %q, want empty", got)
		}
	})

	t.Run("joins multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Path: "text", Message: "required field is missing"},
			{Message: "expected object, got string"},
		}
		got := errs.Error()
		if !strings.Contains(got, "text: required field is missing") || !strings.Contains(got, "; expected object") {
			t.Errorf("Error() = %q", got)
		}
	})
}
