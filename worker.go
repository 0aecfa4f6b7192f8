package jobsched

import (
	"fmt"
	"runtime/debug"
)

// worker is one goroutine's view of the pool: a back-pointer to the owning
// Manager (for logging) and an index used purely for log/metric labeling.
// There is no other per-worker state; workers are interchangeable.
//
// Grounded on the original's JobThread::Run: dequeue, run, and follow the
// hand-off chain returned by run() before dequeuing again.
type worker struct {
	mgr   *Manager
	index int
}

func (w *worker) loop() {
	defer w.mgr.wg.Done()

	var jobCount uint64
	for {
		rec := w.mgr.readyList.dequeue()
		if rec == nil {
			// A nil sentinel means shutdown. There is exactly one per
			// worker, enqueued by Manager.Shutdown.
			break
		}
		for rec != nil {
			rec = w.runOne(rec)
			jobCount++
		}
	}

	w.mgr.diag.debug().Int("worker", w.index).Uint64("jobs_run", jobCount).Log("worker exiting")
}

// runOne executes rec, recovering a panic from its runnable so that it can
// be logged with a stack trace before the process halts via haltFunc. A
// panicking runnable is treated as an invariant violation: the core assumes
// runnables are total (see PanicError).
func (w *worker) runOne(rec *jobRecord) (next *jobRecord) {
	defer func() {
		if p := recover(); p != nil {
			perr := &PanicError{Value: p, Stack: debug.Stack()}
			w.mgr.diag.err().Int("worker", w.index).Err(perr).Log("runnable panicked")
			haltFunc(&InvariantError{Msg: fmt.Sprintf("runnable panicked: %v", p)})
			next = nil
		}
	}()
	if w.mgr.metricsEnabled {
		w.mgr.metrics.completed.Add(1)
	}
	return rec.run()
}
