package search

import (
	"testing"

	"github.com/orka-sh/orka/internal/core"
)

func TestBuildWithCaps_PrunesUnderPressure(t *testing.T) {
	items := make([]core.LiteObj, 0, 50)
	for i := 0; i < 50; i++ {
		items = append(items, core.LiteObj{
			UID:       uid(byte(i + 1)),
			Name:      "object-with-a-reasonably-long-name",
			Namespace: "default",
			Labels:    []core.KV{{Key: "app", Value: "web"}},
			Projected: []core.ProjectedField{{FieldID: 1, Value: "some projected value"}},
		})
	}
	s := snap(items...)

	idx := BuildWithCaps(s, nil, "", "", 0, 1)

	ev := idx.PressureEvents()
	if ev.TrimmedBytes == 0 {
		t.Fatal("expected pruning to trim bytes under an aggressive byte cap")
	}
	if len(idx.labelPost) != 0 {
		t.Error("expected value postings to be dropped first")
	}
	// Search should still work after pruning (names preserved even when
	// texts are shrunk to bare names).
	hits := idx.Search("ns:default", 10)
	if len(hits) != 50 {
		t.Fatalf("expected all 50 docs still searchable by ns filter, got %d", len(hits))
	}
}
