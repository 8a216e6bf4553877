package search

import "unsafe"

// slotSize approximates the bytes an int posting entry costs; mirrors
// the reference's std::mem::size_of::<usize>() accounting.
const slotSize = unsafe.Sizeof(int(0))

func (idx *Index) approxBytes() int64 {
	var b int64
	for _, s := range idx.texts {
		b += int64(len(s))
	}
	for _, s := range idx.namespace {
		b += int64(len(s))
	}
	for _, fields := range idx.projected {
		for _, pf := range fields {
			b += int64(len(pf.Value))
		}
	}
	for _, v := range idx.labelPost {
		b += int64(len(v)) * int64(slotSize)
	}
	for _, v := range idx.annoPost {
		b += int64(len(v)) * int64(slotSize)
	}
	for _, v := range idx.labelKeyPost {
		b += int64(len(v)) * int64(slotSize)
	}
	for _, v := range idx.annoKeyPost {
		b += int64(len(v)) * int64(slotSize)
	}
	b += int64(len(idx.texts)) * int64(slotSize)
	return b
}

// enforceCap runs the four-phase pruning ladder from the reference
// implementation, stopping as soon as the index is back under cap:
// drop value postings, drop key-only postings, shrink display texts
// down to bare names, then drop projected field values entirely.
// Each phase that actually trims something records a PressureEvent
// (accumulated into idx.pressure, surfaced via PressureEvents).
func (idx *Index) enforceCap(cap int64, before int64) {
	approx := before

	if approx > cap {
		dropped := idx.pruneValuePostings()
		after := idx.approxBytes()
		if dropped > 0 || after != approx {
			idx.recordPressure(approx-after, dropped)
			approx = after
		}
	}

	if approx > cap {
		dropped := idx.pruneKeyPostings()
		after := idx.approxBytes()
		if dropped > 0 || after != approx {
			idx.recordPressure(approx-after, dropped)
			approx = after
		}
	}

	if approx > cap {
		trimmed := idx.shrinkTextsToName()
		after := idx.approxBytes()
		if trimmed > 0 {
			idx.recordPressure(approx-after, 0)
			approx = after
		}
	}

	if approx > cap {
		trimmed := idx.pruneProjected()
		after := idx.approxBytes()
		if trimmed > 0 {
			idx.recordPressure(approx-after, 0)
			approx = after
		}
	}
}

func (idx *Index) recordPressure(trimmedBytes int64, droppedKeys int) {
	if trimmedBytes < 0 {
		trimmedBytes = 0
	}
	idx.pressure.TrimmedBytes += uint64(trimmedBytes)
	idx.pressure.Dropped += uint64(droppedKeys)
}

func (idx *Index) pruneValuePostings() int {
	keys := len(idx.labelPost) + len(idx.annoPost)
	idx.labelPost = make(map[string][]int)
	idx.annoPost = make(map[string][]int)
	return keys
}

func (idx *Index) pruneKeyPostings() int {
	keys := len(idx.labelKeyPost) + len(idx.annoKeyPost)
	idx.labelKeyPost = make(map[string][]int)
	idx.annoKeyPost = make(map[string][]int)
	return keys
}

func (idx *Index) shrinkTextsToName() int {
	trimmed := 0
	for i, old := range idx.texts {
		name := idx.names[i]
		if len(old) > len(name) {
			trimmed += len(old) - len(name)
		}
		idx.texts[i] = name
	}
	return trimmed
}

func (idx *Index) pruneProjected() int {
	trimmed := 0
	for i, fields := range idx.projected {
		for _, pf := range fields {
			trimmed += len(pf.Value)
		}
		idx.projected[i] = nil
	}
	return trimmed
}
