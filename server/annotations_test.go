package server

import "testing"

func TestToolAnnotations(t *testing.T) {
	t.Run("no annotations by default", func(t *testing.T) {
		tool, _ := echoTool("plain").Build()
		if tool.Info().Annotations != nil {
			t.Errorf("expected nil annotations, got %+v", tool.Info().Annotations)
		}
	})

	t.Run("ReadOnly sets read-only and non-destructive", func(t *testing.T) {
		tool, _ := echoTool("ro").ReadOnly().Build()
		a := tool.Info().Annotations
		if a.ReadOnlyHint == nil || !*a.ReadOnlyHint {
			t.Error("expected ReadOnlyHint=true")
		}
		if a.DestructiveHint == nil || *a.DestructiveHint {
			t.Error("expected DestructiveHint=false")
		}
	})

	t.Run("hints chain together", func(t *testing.T) {
		tool, _ := echoTool("all").Title("Character Counter").Idempotent().ClosedWorld().Build()
		a := tool.Info().Annotations
		if a.Title != "Character Counter" {
			t.Errorf("Title = %q", a.Title)
		}
		if a.IdempotentHint == nil || !*a.IdempotentHint {
			t.Error("expected IdempotentHint=true")
		}
		if a.OpenWorldHint == nil || *a.OpenWorldHint {
			t.Error("expected OpenWorldHint=false")
		}
	})

	t.Run("Bool returns pointer", func(t *testing.T) {
		if p := Bool(true); p == nil || !*p {
			t.Error("expected pointer to true")
		}
	})
}
