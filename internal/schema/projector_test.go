package schema

import (
	"testing"

	"github.com/orka-sh/orka/internal/core"
)

func TestProjector_ExtractsDottedAndIndexedPaths(t *testing.T) {
	raw := map[string]any{
		"spec": map[string]any{
			"replicas": float64(3),
			"dnsNames": []any{"a.example.com", "b.example.com"},
		},
	}

	p := NewProjector([]core.PathSpec{
		{ID: 1, JSONPath: "spec.replicas"},
		{ID: 2, JSONPath: "spec.dnsNames[1]"},
		{ID: 3, JSONPath: "spec.missing"},
	})

	fields := p.Project(raw)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields (missing path skipped), got %d: %v", len(fields), fields)
	}
	if fields[0].Value != "3" {
		t.Errorf("replicas = %q, want %q", fields[0].Value, "3")
	}
	if fields[1].Value != "b.example.com" {
		t.Errorf("dnsNames[1] = %q, want %q", fields[1].Value, "b.example.com")
	}
}

func TestNormalizeJSONPath_RejectsWildcards(t *testing.T) {
	if _, ok := normalizeJSONPath(".spec.items[*].name"); ok {
		t.Error("expected wildcard path to be rejected")
	}
	if _, ok := normalizeJSONPath(""); ok {
		t.Error("expected empty path to be rejected")
	}

	got, ok := normalizeJSONPath(".spec.foo")
	if !ok || got != "spec.foo" {
		t.Errorf("got (%q, %v), want (%q, true)", got, ok, "spec.foo")
	}
}
