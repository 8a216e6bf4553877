package search

import (
	"testing"

	"github.com/orka-sh/orka/internal/core"
)

func uid(n byte) core.UID {
	var u core.UID
	u[0] = n
	return u
}

func obj(n byte, name, ns string, labels, annos []core.KV, projected []core.ProjectedField) core.LiteObj {
	return core.LiteObj{
		UID:         uid(n),
		Namespace:   ns,
		Name:        name,
		Labels:      labels,
		Annotations: annos,
		Projected:   projected,
	}
}

func snap(items ...core.LiteObj) *core.WorldSnapshot {
	return &core.WorldSnapshot{Epoch: 1, Items: items}
}

func TestSearch_NamespaceFilter(t *testing.T) {
	s := snap(
		obj(1, "a", "default", nil, nil, nil),
		obj(2, "b", "prod", nil, nil, nil),
	)
	idx := Build(s, nil, "ConfigMap", "")
	hits, _ := idx.SearchWithDebug("ns:default", 10)
	if len(hits) != 1 || s.Items[hits[0].Doc].Name != "a" {
		t.Fatalf("got %v", hits)
	}
}

func TestSearch_LabelAndAnnoFilters(t *testing.T) {
	s := snap(
		obj(1, "a", "default",
			[]core.KV{{Key: "app", Value: "web"}, {Key: "tier", Value: "frontend"}},
			[]core.KV{{Key: "team", Value: "core"}}, nil),
		obj(2, "b", "default",
			[]core.KV{{Key: "app", Value: "api"}},
			[]core.KV{{Key: "team", Value: "platform"}}, nil),
	)
	idx := Build(s, nil, "", "")

	hits, _ := idx.SearchWithDebug("label:app=web", 10)
	if len(hits) != 1 || s.Items[hits[0].Doc].Name != "a" {
		t.Fatalf("label:app=web got %v", hits)
	}

	hits2, _ := idx.SearchWithDebug("label:app", 10)
	if len(hits2) != 2 {
		t.Fatalf("label key existence should match both, got %d", len(hits2))
	}

	hits3, _ := idx.SearchWithDebug("anno:team=platform", 10)
	if len(hits3) != 1 || s.Items[hits3[0].Doc].Name != "b" {
		t.Fatalf("anno:team=platform got %v", hits3)
	}
}

func TestSearch_FieldFilterMatchesProjected(t *testing.T) {
	s := snap(
		obj(1, "a", "default", nil, nil, []core.ProjectedField{{FieldID: 1, Value: "x"}, {FieldID: 2, Value: "y"}}),
		obj(2, "b", "default", nil, nil, []core.ProjectedField{{FieldID: 1, Value: "z"}}),
	)
	fields := []FieldPath{{Path: "spec.foo", ID: 1}, {Path: "spec.bar", ID: 2}}
	idx := Build(s, fields, "ConfigMap", "")

	hits, _ := idx.SearchWithDebug("field:spec.foo=x", 10)
	if len(hits) != 1 || s.Items[hits[0].Doc].Name != "a" {
		t.Fatalf("field:spec.foo=x got %v", hits)
	}

	hits2, _ := idx.SearchWithDebug("field:spec.bar=y", 10)
	if len(hits2) != 1 || s.Items[hits2[0].Doc].Name != "a" {
		t.Fatalf("field:spec.bar=y got %v", hits2)
	}

	hits3, _ := idx.SearchWithDebug("field:spec.foo=notfound", 10)
	if len(hits3) != 0 {
		t.Fatalf("expected no hits, got %v", hits3)
	}
}

func TestSearch_TieBreakByNameThenUID(t *testing.T) {
	s := snap(
		obj(2, "alpha", "b", nil, nil, nil),
		obj(1, "alpha", "a", nil, nil, nil),
		obj(3, "beta", "a", nil, nil, nil),
	)
	idx := Build(s, nil, "", "")
	hits, _ := idx.SearchWithDebug("", 10)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if s.Items[hits[0].Doc].Name != "alpha" || s.Items[hits[1].Doc].Name != "alpha" {
		t.Fatalf("expected alpha, alpha first, got %v", hits)
	}
	if s.Items[hits[0].Doc].UID[0] != 1 || s.Items[hits[1].Doc].UID[0] != 2 {
		t.Fatalf("expected uid byte 1 before 2 for tied names, got %v", hits)
	}
	if s.Items[hits[2].Doc].Name != "beta" {
		t.Fatalf("expected beta last, got %v", hits)
	}
}

func TestSearch_KindAndGroupFiltersGateResults(t *testing.T) {
	s := snap(
		obj(1, "a", "default", nil, nil, nil),
		obj(2, "b", "default", nil, nil, nil),
	)
	idx := Build(s, nil, "ConfigMap", "")

	if got := len(idx.Search("k:ConfigMap", 10)); got != 2 {
		t.Errorf("k:ConfigMap got %d hits, want 2", got)
	}
	if got := len(idx.Search("k:Pod", 10)); got != 0 {
		t.Errorf("k:Pod got %d hits, want 0", got)
	}
	if got := len(idx.Search("g:apps", 10)); got != 0 {
		t.Errorf("g:apps got %d hits, want 0", got)
	}
}

func TestSearch_MaxCandidatesCapsEvaluation(t *testing.T) {
	s := snap(
		obj(1, "alpha", "ns", nil, nil, nil),
		obj(2, "beta", "ns", nil, nil, nil),
		obj(3, "gamma", "ns", nil, nil, nil),
	)
	idx := Build(s, nil, "", "")
	hits, _ := idx.SearchWithDebugOpts("ns:ns", 10, Opts{MaxCandidates: 2})
	if len(hits) != 2 {
		t.Fatalf("expected candidate cap to yield 2 hits, got %d", len(hits))
	}
}

func TestSearch_MinScoreFiltersLowScores(t *testing.T) {
	s := snap(obj(1, "alpha", "default", nil, nil, nil))
	idx := Build(s, nil, "", "")
	min := float32(1_000_000)
	hits, _ := idx.SearchWithDebugOpts("alpha", 10, Opts{MinScore: &min})
	if len(hits) != 0 {
		t.Fatalf("expected no hits above an unreachable min score, got %v", hits)
	}
}
