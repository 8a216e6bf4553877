package apply

import "github.com/orka-sh/orka/internal/core"

// stripNoisy removes fields that change on every read without
// reflecting an intentional edit (managedFields, resourceVersion,
// generation, creationTimestamp, and the entire status subresource),
// so diffs and preflight comparisons only see fields a caller could
// plausibly have changed. Mutates and returns v; nil is treated as an
// empty object.
func stripNoisy(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	if meta, ok := v["metadata"].(map[string]any); ok {
		delete(meta, "managedFields")
		delete(meta, "resourceVersion")
		delete(meta, "generation")
		delete(meta, "creationTimestamp")
	}
	delete(v, "status")
	return v
}

// DiffSummary counts adds, updates, and removes target introduces
// relative to base by walking both trees in lockstep: matching object
// keys recurse, keys only in target count as adds, keys only in base
// count as removes, arrays compare element-by-element up to their
// shorter length (with the length difference counted as adds or
// removes), and any other value mismatch counts as a single update.
func DiffSummary(target, base map[string]any) core.DiffSummary {
	var s core.DiffSummary
	walkDiff(target, base, &s)
	return s
}

func walkDiff(a, b any, s *core.DiffSummary) {
	ao, aIsObj := a.(map[string]any)
	bo, bIsObj := b.(map[string]any)
	if aIsObj && bIsObj {
		for k, av := range ao {
			if bv, ok := bo[k]; ok {
				if !deepEqual(av, bv) {
					walkDiff(av, bv, s)
				}
			} else {
				s.Adds++
			}
		}
		for k := range bo {
			if _, ok := ao[k]; !ok {
				s.Removes++
			}
		}
		return
	}

	aa, aIsArr := a.([]any)
	bb, bIsArr := b.([]any)
	if aIsArr && bIsArr {
		minLen := len(aa)
		if len(bb) < minLen {
			minLen = len(bb)
		}
		for i := 0; i < minLen; i++ {
			if !deepEqual(aa[i], bb[i]) {
				s.Updates++
			}
		}
		if len(aa) > len(bb) {
			s.Adds += len(aa) - len(bb)
		}
		if len(bb) > len(aa) {
			s.Removes += len(bb) - len(aa)
		}
		return
	}

	if !deepEqual(a, b) {
		s.Updates++
	}
}

// deepEqual is a minimal structural equality check over the
// map[string]any / []any / scalar tree produced by YAML/JSON decoding.
func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
