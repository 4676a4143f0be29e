package maps

// DefaultStablePasses is how many consecutive unchanged extent measurements
// end a collection run.
const DefaultStablePasses = 3

// StabilityTracker decides when a feed without an end-of-results signal is
// exhausted: the measured extent must repeat for Required consecutive passes.
type StabilityTracker struct {
	Required int

	last   int64
	stable int
}

// NewStabilityTracker returns a tracker needing required unchanged passes.
// Values below 1 fall back to DefaultStablePasses.
func NewStabilityTracker(required int) *StabilityTracker {
	if required < 1 {
		required = DefaultStablePasses
	}
	return &StabilityTracker{Required: required}
}

// Observe records one measurement and reports whether the feed has converged.
// The baseline before the first pass is 0.
func (t *StabilityTracker) Observe(extent int64) bool {
	if extent == t.last {
		t.stable++
	} else {
		t.stable = 0
	}
	t.last = extent
	return t.stable >= t.Required
}

// Stable returns the current count of consecutive unchanged passes.
func (t *StabilityTracker) Stable() int { return t.stable }
