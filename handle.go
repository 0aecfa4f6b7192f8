package jobsched

// Handle is an opaque (generation, record) pair identifying a submitted job.
// "Done" is defined as the record having moved past this generation (its
// xid no longer matches), not by any reference count. A caller must not
// dereference the underlying record directly; IsDone and WaitOn are the
// only supported observations.
type Handle struct {
	xid uint64
	rec *jobRecord
}

// IsDone reports whether the job has completed. Always safe to call,
// including on an already-completed handle.
func (h Handle) IsDone() bool {
	return h.rec.isComplete(h.xid)
}

// WaitOn blocks the calling goroutine until the job completes. Returns
// immediately if it already has.
func (h Handle) WaitOn() {
	h.rec.waitOn(h.xid)
}

// BlockedHandle is a Handle created with an artificial antecedent count of
// one, parking it until user code releases the barrier. It is returned by
// InsertBlocked and InsertBlockedBatch.
type BlockedHandle struct {
	Handle
}

// AddBarrier adds count to the job's outstanding antecedent count and
// returns a Runnable that, when executed (typically by submitting it as an
// ordinary dependent job elsewhere in the graph), releases exactly one of
// those units. This is the scheduler-provided "releaser" trampoline: it lets
// a blocked job be gated by an arbitrary number of independently-completing
// paths, not just a direct ReleaseBarrier call from the submitter.
//
// Grounded on the original's JobBarrierReleaser/kJobBarrierReleaser_Checkword:
// the original packs the target pointer and a verification checkword into
// the runnable's raw Arguments, because its Runnable has no closure support.
// Go closures capture the target and the expected generation directly, so
// the checkword here is a plain field comparison rather than a packed magic
// constant, but it plays the same role: catching a releaser invoked against
// a record that has since been reinitialized to a different generation.
func (h BlockedHandle) AddBarrier(count int) Runnable {
	h.rec.appendBarrier(uintptr(count))
	target := h.rec
	expectedXID := h.xid
	return func(*Args) {
		stale := target.xid.Load() != expectedXID
		assertAlwaysf(!stale, "barrier releaser invoked against a stale generation")
		if stale {
			return
		}
		target.notify()
	}
}

// ReleaseBarrier decrements the job's outstanding antecedent count by
// count, directly. Panics (via the invariant-violation halt path) if the
// handle's generation is no longer current; if the halt function returns,
// nothing is released.
func (h BlockedHandle) ReleaseBarrier(count int) {
	stale := h.rec.xid.Load() != h.xid
	assertAlwaysf(!stale, "ReleaseBarrier called on a stale BlockedHandle")
	if stale {
		return
	}
	for i := 0; i < count; i++ {
		h.rec.notify()
	}
}
