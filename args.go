package jobsched

// Args is the four machine-word argument tuple passed to a [Runnable].
// Callers encode pointers (via uintptr round-trips), indices, or small
// integers into the slots; richer arguments are packed through an
// indirection (e.g. a pointer to a caller-owned struct in a0).
type Args [4]uintptr

// Runnable is an opaque unit of work. A nil Runnable is permitted: the
// record it is attached to acts as a pure aggregator/barrier job, doing
// nothing but propagating completion to its successors.
type Runnable func(*Args)
