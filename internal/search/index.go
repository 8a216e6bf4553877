// Package search builds a flat, in-memory inverted index over a
// core.WorldSnapshot and evaluates typed queries against it. Ground
// truth is original_source/crates/search: a single, unsharded index
// (no internal partitioning), sorted-postings intersection for
// label/annotation/field filters, and sahilm/fuzzy scoring for
// free-text terms.
package search

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/orka-sh/orka/internal/core"
)

// Hit is a single search result: the index of the matched object
// within the snapshot it was built from, and its fuzzy-match score
// (0 when the query carries no free-text term).
type Hit struct {
	Doc   int
	Score float32
}

// DebugInfo reports how many candidates survived each filtering stage,
// surfaced to callers that want to explain why a query returned what
// it did.
type DebugInfo struct {
	Total          int
	AfterNS        int
	AfterLabelKeys int
	AfterLabels    int
	AfterAnnoKeys  int
	AfterAnnos     int
	AfterFields    int
}

// Opts bounds the cost of evaluating a query.
type Opts struct {
	MaxCandidates int // 0 means unbounded
	MinScore      *float32
}

// Index is a flat, in-memory search index over a single snapshot.
// Rebuilt wholesale on every snapshot publish; Orka never mutates an
// Index in place.
type Index struct {
	names []string
	uids  []core.UID

	fieldIDs map[string]uint32

	texts     []string
	namespace []string
	projected [][]core.ProjectedField

	labelPost    map[string][]int
	annoPost     map[string][]int
	labelKeyPost map[string][]int
	annoKeyPost  map[string][]int

	kind  string // lowercased; empty means unset
	group string // lowercased; empty means core group or unset

	pressure      core.PressureEvents
	truncatedKeys int
}

// TruncatedKeys reports how many key=value postings insertions were
// refused during the build because that list was already at
// maxPostingsPerKey, for the orka_index_postings_truncated_keys_total
// metric. Refusals on key-only lists are not counted.
func (idx *Index) TruncatedKeys() int {
	return idx.truncatedKeys
}

// FieldPath pairs a schema-derived json path with the stable field id
// a Projector emits for it, so "field:spec.foo=bar" queries can
// resolve path to id.
type FieldPath struct {
	Path string
	ID   uint32
}

// Build constructs an Index from snap, scoped to a single kind/group
// (Orka indexes are always per-GVK) and optionally aware of the
// schema-derived field paths queryable via "field:path=value".
func Build(snap *core.WorldSnapshot, fields []FieldPath, kind, group string) *Index {
	return buildWithCaps(snap, fields, kind, group, maxPostingsPerKeyEnv(), maxIndexBytesEnv())
}

// BuildWithCaps is Build with explicit postings/byte caps, used by
// callers (internal/api) that source the caps from config rather than
// the ORKA_MAX_POSTINGS_PER_KEY / ORKA_MAX_INDEX_BYTES environment
// variables the standalone reference tool reads.
func BuildWithCaps(snap *core.WorldSnapshot, fields []FieldPath, kind, group string, maxPostingsPerKey int, maxIndexBytes int64) *Index {
	return buildWithCaps(snap, fields, kind, group, maxPostingsPerKey, maxIndexBytes)
}

func maxPostingsPerKeyEnv() int {
	if v := os.Getenv("ORKA_MAX_POSTINGS_PER_KEY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func maxIndexBytesEnv() int64 {
	if v := os.Getenv("ORKA_MAX_INDEX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildWithCaps(snap *core.WorldSnapshot, fields []FieldPath, kind, group string, maxPostingsPerKey int, maxIndexBytes int64) *Index {
	idx := &Index{
		fieldIDs:     make(map[string]uint32, len(fields)),
		labelPost:    make(map[string][]int),
		annoPost:     make(map[string][]int),
		labelKeyPost: make(map[string][]int),
		annoKeyPost:  make(map[string][]int),
		kind:         strings.ToLower(kind),
		group:        strings.ToLower(group),
	}
	for _, f := range fields {
		idx.fieldIDs[f.Path] = f.ID
	}

	n := len(snap.Items)
	idx.names = make([]string, 0, n)
	idx.uids = make([]core.UID, 0, n)
	idx.texts = make([]string, 0, n)
	idx.namespace = make([]string, 0, n)
	idx.projected = make([][]core.ProjectedField, 0, n)

	truncatedKeys := 0

	for i, o := range snap.Items {
		idx.names = append(idx.names, o.Name)
		idx.uids = append(idx.uids, o.UID)
		idx.namespace = append(idx.namespace, o.Namespace)
		idx.projected = append(idx.projected, o.Projected)

		var b strings.Builder
		if o.Namespace != "" {
			b.WriteString(o.Namespace)
			b.WriteByte('/')
		}
		b.WriteString(o.Name)
		for _, pf := range o.Projected {
			b.WriteByte(' ')
			b.WriteString(pf.Value)
		}
		idx.texts = append(idx.texts, b.String())

		for _, kv := range o.Labels {
			truncatedKeys += postLabelOrAnno(idx.labelPost, kv, i, maxPostingsPerKey)
			truncatedKeys += postKeyOnly(idx.labelKeyPost, kv.Key, i, maxPostingsPerKey)
		}
		for _, kv := range o.Annotations {
			truncatedKeys += postLabelOrAnno(idx.annoPost, kv, i, maxPostingsPerKey)
			truncatedKeys += postKeyOnly(idx.annoKeyPost, kv.Key, i, maxPostingsPerKey)
		}
	}
	idx.truncatedKeys = truncatedKeys

	if maxIndexBytes > 0 {
		if before := idx.approxBytes(); before > maxIndexBytes {
			idx.enforceCap(maxIndexBytes, before)
		}
	}

	return idx
}

func postLabelOrAnno(post map[string][]int, kv core.KV, doc, cap int) (truncated int) {
	key := kv.Key + "=" + kv.Value
	vec := post[key]
	if cap > 0 && len(vec) >= cap {
		return 1
	}
	post[key] = append(vec, doc)
	return 0
}

func postKeyOnly(post map[string][]int, key string, doc, cap int) (truncated int) {
	vec := post[key]
	if cap > 0 && len(vec) >= cap {
		return 0
	}
	post[key] = append(vec, doc)
	return 0
}

// PressureEvents reports the memory-pressure pruning activity this
// Index's build underwent, if any.
func (idx *Index) PressureEvents() core.PressureEvents {
	return idx.pressure
}

// intersectSorted merges two ascending, duplicate-free index lists.
// Postings are appended in snapshot order at build time, so they are
// already sorted.
func intersectSorted(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// Search evaluates q against the index and returns up to limit hits,
// sorted by score descending then name ascending then uid ascending.
func (idx *Index) Search(q string, limit int) []Hit {
	hits, _ := idx.SearchWithDebug(q, limit, Opts{})
	return hits
}

// SearchWithDebug is Search plus DebugInfo, using default Opts.
func (idx *Index) SearchWithDebug(q string, limit int) ([]Hit, DebugInfo) {
	return idx.SearchWithDebugOpts(q, limit, Opts{})
}

// SearchWithDebugOpts is the full query evaluator: it tokenizes q into
// typed filters (ns:, k:, g:, field:path=value, label:key[=value],
// anno:key[=value]) plus a free-text remainder, narrows candidates by
// sorted-postings intersection, scores the remainder with fuzzy
// matching, and returns a deterministically ordered, limit-truncated
// hit list.
func (idx *Index) SearchWithDebugOpts(q string, limit int, opts Opts) ([]Hit, DebugInfo) {
	filters := parseQuery(q, idx.fieldIDs)

	if len(filters.kinds) > 0 && !anyEqualFold(filters.kinds, idx.kind) {
		return nil, DebugInfo{Total: len(idx.names)}
	}
	if len(filters.groups) > 0 && !anyEqualFold(filters.groups, idx.group) {
		return nil, DebugInfo{Total: len(idx.names)}
	}

	total := len(idx.names)

	var candidates []int
	if filters.ns != nil {
		ns := *filters.ns
		for i, n := range idx.namespace {
			if n == ns {
				candidates = append(candidates, i)
			}
		}
	} else {
		candidates = make([]int, len(idx.texts))
		for i := range candidates {
			candidates[i] = i
		}
	}
	afterNS := len(candidates)

	for _, key := range filters.labelKeys {
		post, ok := idx.labelKeyPost[key]
		if !ok {
			candidates = nil
			break
		}
		candidates = intersectSorted(candidates, post)
	}
	afterLabelKeys := len(candidates)

	for _, key := range filters.labels {
		post, ok := idx.labelPost[key]
		if !ok {
			candidates = nil
			break
		}
		candidates = intersectSorted(candidates, post)
	}
	afterLabels := len(candidates)

	for _, key := range filters.annoKeys {
		post, ok := idx.annoKeyPost[key]
		if !ok {
			candidates = nil
			break
		}
		candidates = intersectSorted(candidates, post)
	}
	afterAnnoKeys := len(candidates)

	for _, key := range filters.annos {
		post, ok := idx.annoPost[key]
		if !ok {
			candidates = nil
			break
		}
		candidates = intersectSorted(candidates, post)
	}
	afterAnnos := len(candidates)

	if opts.MaxCandidates > 0 && len(candidates) > opts.MaxCandidates {
		candidates = candidates[:opts.MaxCandidates]
	}

	passedFields := 0
	var hits []Hit

	var scored map[int]float32
	if filters.freeQ != "" {
		scored = fuzzyScore(idx.texts, candidates, filters.freeQ)
	}

docLoop:
	for _, doc := range candidates {
		for _, ff := range filters.fields {
			if !hasProjectedField(idx.projected[doc], ff.id, ff.value) {
				continue docLoop
			}
		}
		passedFields++

		var score float32
		matched := filters.freeQ == ""
		if !matched {
			score, matched = scored[doc]
		}
		if !matched {
			continue
		}
		if opts.MinScore != nil && score < *opts.MinScore {
			continue
		}
		hits = append(hits, Hit{Doc: doc, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ni, nj := idx.names[hits[i].Doc], idx.names[hits[j].Doc]
		if ni != nj {
			return ni < nj
		}
		ui, uj := idx.uids[hits[i].Doc], idx.uids[hits[j].Doc]
		for k := range ui {
			if ui[k] != uj[k] {
				return ui[k] < uj[k]
			}
		}
		return false
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, DebugInfo{
		Total:          total,
		AfterNS:        afterNS,
		AfterLabelKeys: afterLabelKeys,
		AfterLabels:    afterLabels,
		AfterAnnoKeys:  afterAnnoKeys,
		AfterAnnos:     afterAnnos,
		AfterFields:    passedFields,
	}
}

func hasProjectedField(fields []core.ProjectedField, id uint32, value string) bool {
	for _, f := range fields {
		if f.FieldID == id && f.Value == value {
			return true
		}
	}
	return false
}

func anyEqualFold(candidates []string, want string) bool {
	for _, c := range candidates {
		if strings.EqualFold(c, want) {
			return true
		}
	}
	return false
}

// fuzzyScore runs sahilm/fuzzy over the subset of texts named by
// candidates and returns a doc-index -> score map for matches only.
func fuzzyScore(texts []string, candidates []int, query string) map[int]float32 {
	subset := make([]string, len(candidates))
	for i, doc := range candidates {
		subset[i] = texts[doc]
	}
	matches := fuzzy.Find(query, subset)
	out := make(map[int]float32, len(matches))
	for _, m := range matches {
		out[candidates[m.Index]] = float32(m.Score)
	}
	return out
}
