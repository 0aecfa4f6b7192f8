package jobsched

import (
	"sync"
	"sync/atomic"
)

// jobRecord is a fixed-size, pool-allocated unit of work. Records are never
// allocated past Manager construction: the pool is sized once, and records
// cycle between the free list, parked (antecedents outstanding), the ready
// list, and "currently executing".
//
// Grounded on the original's JobInstance (source/xr/services/scheduling.cpp):
// the xid/remainingAntecedents/runnable/successor-list/arguments layout, the
// inline-plus-overflow successor chaining, and the Notify/Run/WaitOn
// algorithms are carried over field for field and line for line where Go's
// memory model permits a faithful port.
type jobRecord struct {
	xid                  atomic.Uint64
	remainingAntecedents atomic.Uintptr
	runnable             Runnable
	args                 Args

	freeList  *boundedStack[*jobRecord]
	readyList *boundedQueue[*jobRecord]

	// successors and successorCount are guarded by sharedMu (the single
	// per-Manager mutex); see appendAntecedent / run.
	successorCount int
	successors     [inlineSuccessorCapacity]*jobRecord

	sharedMu   *sync.Mutex
	completion *sync.Cond

	xidCounter *atomic.Uint64
}

// bind wires a freshly-allocated record to its owning manager's shared
// state. Called exactly once, when the pool is populated at Init.
func (r *jobRecord) bind(freeList *boundedStack[*jobRecord], readyList *boundedQueue[*jobRecord], sharedMu *sync.Mutex, completion *sync.Cond, xidCounter *atomic.Uint64) {
	r.freeList = freeList
	r.readyList = readyList
	r.sharedMu = sharedMu
	r.completion = completion
	r.xidCounter = xidCounter
}

// initialize assigns a fresh xid and resets the record for a new unit of
// work. antecedentCount is the number of Notify calls required before the
// record becomes ready. A nil runnable marks this record as a pure
// aggregator/barrier.
func (r *jobRecord) initialize(runnable Runnable, antecedentCount uintptr, args Args) Handle {
	r.remainingAntecedents.Store(antecedentCount)
	r.runnable = runnable
	r.args = args
	r.successorCount = 0
	for i := range r.successors {
		r.successors[i] = nil
	}
	xid := r.xidCounter.Add(1)
	r.xid.Store(xid)
	return Handle{xid: xid, rec: r}
}

// release returns a completed record to the free list. Precondition: xid
// has already been flipped to doneXID.
func (r *jobRecord) release() {
	assertAlwaysf(r.xid.Load() == doneXID, "release of record with live xid %d", r.xid.Load())
	r.freeList.push(r)
}

// isComplete reports whether this record has completed the initialization
// identified by xid: true if the record has since moved on (or was never
// that generation), meaning it is safe to treat as done.
func (r *jobRecord) isComplete(xid uint64) bool {
	return r.xid.Load() != xid
}

// run executes the record's runnable (if any), publishes completion, and
// fans out to successors. The first successor newly enabled by this
// completion is returned directly instead of being enqueued — the hand-off
// fast path — so the calling worker can execute it without a ready-list
// round trip; any further enabled successors are enqueued.
func (r *jobRecord) run() (next *jobRecord) {
	assertAlwaysf(r.remainingAntecedents.Load() == 0, "run() called with %d antecedents remaining", r.remainingAntecedents.Load())
	xid := r.xid.Load()
	assertAlwaysf(xid != doneXID, "run() called on an already-completed record")

	if r.runnable != nil {
		r.runnable(&r.args)
	}

	r.sharedMu.Lock()
	r.xid.Store(doneXID)
	r.sharedMu.Unlock()
	r.completion.Broadcast()

	count := r.successorCount
	var first *jobRecord
	i := 0
	for ; i < count; i++ {
		first = r.successors[i].notifyReturnOnEnabled()
		if first != nil {
			i++
			break
		}
	}
	for ; i < count; i++ {
		r.successors[i].notify()
	}

	r.release()
	return first
}

// notify performs an atomic CAS-loop decrement of remainingAntecedents. The
// goroutine that observes the 1→0 transition enqueues the record onto the
// ready list.
func (r *jobRecord) notify() {
	for {
		initial := r.remainingAntecedents.Load()
		if initial == 1 {
			r.remainingAntecedents.Store(0)
			r.readyList.enqueue(r)
			return
		}
		assertAlwaysf(initial != 0, "job has invalid antecedent count")
		if r.remainingAntecedents.CompareAndSwap(initial, initial-1) {
			return
		}
	}
}

// notifyReturnOnEnabled is notify's twin: on the 1→0 transition it returns
// the record itself instead of enqueueing it, so the caller can hand off
// directly. Returns nil on any other outcome.
func (r *jobRecord) notifyReturnOnEnabled() *jobRecord {
	for {
		initial := r.remainingAntecedents.Load()
		if initial == 1 {
			r.remainingAntecedents.Store(0)
			return r
		}
		assertAlwaysf(initial != 0, "job has invalid antecedent count")
		if r.remainingAntecedents.CompareAndSwap(initial, initial-1) {
			return nil
		}
	}
}

// addNotificationLocked inserts notifies into source's successor list,
// chaining through a freshly-popped dummy aggregator record once the
// inline capacity is exhausted. Must be called with sharedMu held.
func addNotificationLocked(source, notifies *jobRecord) {
	count := source.successorCount
	switch {
	case count < inlineSuccessorCapacity-1:
		assertAlwaysf(notifies != source, "job cannot depend on itself")
		source.successors[count] = notifies
		source.successorCount = count + 1

	case count == inlineSuccessorCapacity-1:
		source.successorCount = count + 1

		dummy := source.freeList.pop()
		dummy.initialize(nil, 0, Args{})
		dummy.remainingAntecedents.Store(1)
		dummy.successorCount = 1
		dummy.successors[0] = notifies

		source.successors[inlineSuccessorCapacity-1] = dummy

	default: // count > inlineSuccessorCapacity-1: the overflow chain is active
		addNotificationLocked(source.successors[inlineSuccessorCapacity-1], notifies)
	}
}

// appendAntecedent registers self as a successor of source, identified by
// sourceXID. If source has already completed that generation, self is
// notified directly instead of being linked in (it would otherwise wait
// forever on an event that already fired).
func (r *jobRecord) appendAntecedent(source *jobRecord, sourceXID uint64) {
	r.sharedMu.Lock()
	already := source.isComplete(sourceXID)
	if !already {
		addNotificationLocked(source, r)
	}
	r.sharedMu.Unlock()
	if already {
		r.notify()
	}
}

// appendAntecedents registers self as a successor of every handle in
// handles, returning the number that had already completed (the caller is
// responsible for notifying self that many times, typically via a barrier
// release rather than n direct calls).
func (r *jobRecord) appendAntecedents(handles []Handle) (numAlreadyCompleted int) {
	r.sharedMu.Lock()
	for _, h := range handles {
		if h.IsDone() {
			numAlreadyCompleted++
		} else {
			addNotificationLocked(h.rec, r)
		}
	}
	r.sharedMu.Unlock()
	return numAlreadyCompleted
}

// appendAntecedentNotStartedNoLock links self in as a successor of source
// without acquiring sharedMu. Valid only at submission time, when both
// records were just popped from the free list and are not yet observable
// by any other goroutine.
func (r *jobRecord) appendAntecedentNotStartedNoLock(source *jobRecord) {
	addNotificationLocked(source, r)
}

// appendBarrier adds count to remainingAntecedents. Used by BlockedHandle to
// install an artificial, user-released gate.
func (r *jobRecord) appendBarrier(count uintptr) {
	r.remainingAntecedents.Add(count)
}

// waitOn blocks the calling goroutine until the generation identified by
// xid has completed. Re-checks the predicate in a loop to tolerate spurious
// wakeups, matching sync.Cond's contract.
func (r *jobRecord) waitOn(xid uint64) {
	r.sharedMu.Lock()
	for !r.isComplete(xid) {
		r.completion.Wait()
	}
	r.sharedMu.Unlock()
}
