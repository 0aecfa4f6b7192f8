// Package jobsched implements a parallel job scheduler with dependency-graph
// semantics: a fixed pool of pre-allocated job records, dispatched to a fixed
// pool of worker goroutines, with fan-in, fan-out, blocked/released jobs,
// batched submission, and blocking waits on completion handles.
//
// The scheduler is built from a small set of primitives: a bounded blocking
// queue (the ready list), a bounded blocking stack (the free list), and a
// job record carrying an antecedent counter, an inline successor list with
// unbounded overflow chaining, and a generation id ("xid") that lets handles
// detect staleness without reference counting.
//
// Jobs never return errors to the scheduler: a [Runnable] is assumed total.
// Scheduling-protocol violations (double-decrement, shutdown with
// outstanding work, use of an invalid handle) are treated as programmer
// error and halt the process; see [SetHaltFunc].
package jobsched
