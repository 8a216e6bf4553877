package apply

import "testing"

func TestStripNoisy_PrunesCommonFields(t *testing.T) {
	v := map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]any{
			"name":              "x",
			"namespace":         "ns",
			"managedFields":     []any{map[string]any{"foo": "bar"}},
			"resourceVersion":   "123",
			"generation":        float64(5),
			"creationTimestamp": "2020-01-01T00:00:00Z",
		},
		"status": map[string]any{"obs": true},
		"data":   map[string]any{"k": "v"},
	}

	pruned := stripNoisy(v)
	meta := pruned["metadata"].(map[string]any)
	for _, k := range []string{"managedFields", "resourceVersion", "generation", "creationTimestamp"} {
		if _, ok := meta[k]; ok {
			t.Errorf("expected metadata.%s to be pruned", k)
		}
	}
	if _, ok := pruned["status"]; ok {
		t.Error("expected status to be pruned")
	}
}

func TestDiffSummary_CountsAddsUpdatesRemoves(t *testing.T) {
	base := map[string]any{
		"a": float64(1),
		"b": map[string]any{"x": float64(1)},
		"c": []any{float64(1), float64(2), float64(3)},
	}
	target := map[string]any{
		"a": float64(2),
		"b": map[string]any{"x": float64(1), "y": float64(2)},
		"c": []any{float64(1), float64(9)},
		"d": true,
	}

	s := DiffSummary(target, base)
	if s.Adds != 2 {
		t.Errorf("adds = %d, want 2", s.Adds)
	}
	if s.Updates != 2 {
		t.Errorf("updates = %d, want 2", s.Updates)
	}
	if s.Removes != 1 {
		t.Errorf("removes = %d, want 1", s.Removes)
	}
}
