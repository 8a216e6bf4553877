package core

// PrinterCol is a single CRD `additionalPrinterColumns` entry reduced to
// the fields Orka projects: a display name and the JSON path it reads.
type PrinterCol struct {
	Name     string
	JSONPath string
}

// PathSpec binds a stable projected-field ID to a normalized JSON path,
// so the projector can emit a ProjectedField without re-deriving the
// path on every object.
type PathSpec struct {
	ID       uint32
	JSONPath string
}

// SchemaFlags records how a CrdSchema was obtained, for diagnostics and
// for the offline/builtin-skip scheduling policy (see
// internal/config's SchemaOfflineOnly/SchemaBuiltinSkip).
type SchemaFlags struct {
	FromPrinterColumns bool // printer columns were present on the CRD
	FromOpenAPIWalk    bool // derived via a depth-limited spec.* walk
	Served             bool // at least one served version was found
}

// maxProjectedPaths is the invariant cap on schema-derived projected
// paths (spec §3: "at most 6 projected paths").
const maxProjectedPaths = 6

// CrdSchema is the schema-derived projection recipe for a single CRD:
// the served version it was read from, its printer columns (if any),
// the projected field paths derived from them or from an OpenAPI walk,
// and flags describing provenance.
type CrdSchema struct {
	ServedVersion string
	PrinterCols   []PrinterCol
	ProjectedPaths []PathSpec
	Flags         SchemaFlags
}

// Projector extracts a bounded set of display-friendly scalars from a
// raw object. Built-in projectors (internal/projector) and
// schema-derived projectors (internal/schema) both implement this.
type Projector interface {
	// Project returns up to 8 (fieldId, value) pairs extracted from raw.
	Project(raw map[string]any) []ProjectedField
}
