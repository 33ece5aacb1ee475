package journal

import (
	"time"

	"derpisync/internal/syncer"
)

// Run is one sync invocation.
type Run struct {
	ID        string
	StartedAt time.Time
	// FinishedAt is zero while the run is in progress or if it crashed.
	FinishedAt time.Time
	Input      string
	Cancelled  bool
	Counts     map[syncer.State]int
}

// Finished reports whether the run recorded its summary.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Total returns the number of items the run processed.
func (r Run) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Entry is one recorded item outcome.
type Entry struct {
	RunID      string
	Seq        int
	Path       string
	ImageID    *uint64
	ResolvedID *uint64
	State      syncer.State
	Tags       []string
	Detail     string
	RecordedAt time.Time
}
