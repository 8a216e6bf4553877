package schema

import (
	"strconv"
	"strings"

	"github.com/orka-sh/orka/internal/core"
)

// maxProjectedFields bounds how many (fieldId, value) pairs a
// SchemaProjector ever emits, matching LiteObj.Projected's practical
// ceiling regardless of how many PathSpecs it was built from.
const maxProjectedFields = 8

// Projector extracts values at the json paths named by a CrdSchema's
// ProjectedPaths, implementing core.Projector for CRDs and other
// kinds without a built-in column set.
type Projector struct {
	specs []core.PathSpec
}

var _ core.Projector = (*Projector)(nil)

// NewProjector returns a Projector for the given path specs, as
// produced by Fetcher.FetchSchema.
func NewProjector(specs []core.PathSpec) *Projector {
	return &Projector{specs: specs}
}

func (p *Projector) Project(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField
	for _, spec := range p.specs {
		v, ok := extractPath(raw, spec.JSONPath)
		if !ok {
			continue
		}
		s, ok := toScalarString(v)
		if !ok {
			continue
		}
		out = append(out, core.ProjectedField{FieldID: spec.ID, Value: s})
		if len(out) >= maxProjectedFields {
			break
		}
	}
	return out
}

// extractPath walks a dotted json path with optional single [index]
// suffixes per segment (e.g. "spec.dnsNames[0]") against a decoded
// JSON-like value tree.
func extractPath(root map[string]any, path string) (any, bool) {
	var cur any = root

	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}

		key := seg
		idx := -1
		if br := strings.IndexByte(seg, '['); br >= 0 {
			end := strings.IndexByte(seg[br:], ']')
			if end < 0 {
				return nil, false
			}
			end += br
			key = seg[:br]
			parsed, err := strconv.Atoi(seg[br+1 : end])
			if err != nil {
				return nil, false
			}
			idx = parsed
		}

		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}

		if idx >= 0 {
			arr, ok := cur.([]any)
			if !ok || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
		}
	}

	return cur, true
}

// toScalarString renders a decoded JSON scalar as a string, rejecting
// objects, arrays, and null.
func toScalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}
