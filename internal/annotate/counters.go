package annotate

import "fmt"

// Counters aggregates per-run tallies. An explicit value threaded through
// the batch loop, not package state, so dry runs and tests can compare runs.
type Counters struct {
	Updated  int
	Skipped  int
	NotFound int
	Cleared  int
}

// Summary renders the end-of-run report line. The cleared tally is shown
// only when the clear feature was in use or actually fired.
func (c Counters) Summary(clearEnabled bool) string {
	s := fmt.Sprintf("Summary: %d variants updated, %d skipped, %d not found",
		c.Updated, c.Skipped, c.NotFound)
	if clearEnabled && c.Cleared > 0 {
		s += fmt.Sprintf(", %d cleared", c.Cleared)
	}
	return s
}
