package core

// Stats reports runtime configuration and traffic counters exposed to
// callers via the API façade's Stats operation.
type Stats struct {
	RelistSecs           uint64
	WatchBackoffMaxSecs  uint64
	MaxPostingsPerKey    int
	MaxIndexBytes        int64
	MetricsAddr          string
	TrafficSnapshotBytes uint64
	TrafficWatchBytes    uint64
	TrafficDetailsBytes  uint64
}

// PressureEvents counts search-index memory-pressure pruning activity
// (internal/search), surfaced as part of ResponseMeta.
type PressureEvents struct {
	Dropped      uint64
	TrimmedBytes uint64
}

// ResponseMeta accompanies snapshot and search responses with
// information the UI needs to render a "partial results" affordance.
type ResponseMeta struct {
	Partial          bool
	PressureEvents   PressureEvents
	ExplainAvailable bool
}
