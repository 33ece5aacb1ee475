package syncer

import (
	"fmt"
	"strings"
)

// State is the terminal state of one input item.
type State string

const (
	// StateSkipped means the file name carries no image id.
	StateSkipped State = "skipped"
	// StateAlreadyDone means the path was already in the index.
	StateAlreadyDone State = "already_done"
	// StateTagged means tags were applied.
	StateTagged State = "tagged"
	// StateNoTags means the image chain ended without usable tags.
	StateNoTags State = "no_tags"
	// StateFetchFailed covers transport errors, malformed responses,
	// duplicate cycles and cancelled fetches.
	StateFetchFailed State = "fetch_failed"
	// StateTagFailed means tmsu rejected the tag invocation.
	StateTagFailed State = "tag_failed"
)

// AllStates lists states in display order.
var AllStates = []State{
	StateTagged,
	StateNoTags,
	StateAlreadyDone,
	StateSkipped,
	StateFetchFailed,
	StateTagFailed,
}

// Indexed reports whether items ending in s are added to the index.
func (s State) Indexed() bool {
	return s == StateTagged || s == StateNoTags
}

// Failed reports whether s is an error outcome.
func (s State) Failed() bool {
	return s == StateFetchFailed || s == StateTagFailed
}

// ParseState validates a state name.
func ParseState(value string) (State, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, s := range AllStates {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown state %q", value)
}

// Outcome describes what happened to one input item.
type Outcome struct {
	// Seq is the 1-based position of the item among non-blank input lines.
	Seq  int
	Path string
	// Identified is false when no image id could be derived from Path.
	Identified bool
	ImageID    uint64
	// ResolvedID is the image whose tags were used, after duplicate links.
	ResolvedID uint64
	Tags       []string
	State      State
	Err        error
}

// Detail returns the error text, or an empty string.
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary counts outcomes for one run.
type Summary struct {
	Counts    map[State]int
	Cancelled bool
}

func newSummary() Summary {
	return Summary{Counts: make(map[State]int, len(AllStates))}
}

func (s *Summary) add(state State) {
	if s.Counts == nil {
		s.Counts = make(map[State]int, len(AllStates))
	}
	s.Counts[state]++
}

// Count returns the number of items that ended in state.
func (s Summary) Count(state State) int {
	return s.Counts[state]
}

// Total returns the number of items processed.
func (s Summary) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// Failures returns the number of error outcomes.
func (s Summary) Failures() int {
	return s.Counts[StateFetchFailed] + s.Counts[StateTagFailed]
}

// String renders a one-line summary such as "tagged=3 no_tags=1".
func (s Summary) String() string {
	parts := make([]string, 0, len(AllStates)+1)
	for _, state := range AllStates {
		parts = append(parts, fmt.Sprintf("%s=%d", state, s.Counts[state]))
	}
	if s.Cancelled {
		parts = append(parts, "cancelled")
	}
	return strings.Join(parts, " ")
}
