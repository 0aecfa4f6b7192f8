package jobsched

import "golang.org/x/exp/constraints"

// minOrdered returns the smaller of a and b. Used by the bounded queue/stack
// batch operations to size the currently-available window, constrained to
// constraints.Ordered rather than hand-rolled per call site.
func minOrdered[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
