package jobsched

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrBatchArgsLength is returned by InsertReadyBatch/InsertBlockedBatch when
// the supplied Args slice's length is neither 0, 1, nor len(runnables) — a
// boundary-input problem, not a scheduling-protocol invariant violation, so
// it is surfaced as a conventional error rather than routed through
// SetHaltFunc.
var ErrBatchArgsLength = errors.New("jobsched: len(args) must be 0, 1, or len(runnables)")

// Manager owns a fixed pool of job records, a free list, a ready list, and
// a fixed set of worker goroutines. It is the sole external entry point:
// callers submit work through its Insert* methods and observe completion
// through the returned Handle/BlockedHandle.
//
// Grounded on the original's ManagerInternal/IManager (Init allocates the
// pool once, populates the free list, and starts the worker threads;
// Shutdown enqueues one nil sentinel per worker and joins them).
type Manager struct {
	opts *options

	instances []jobRecord
	workers   []worker
	wg        sync.WaitGroup

	freeList  *boundedStack[*jobRecord]
	readyList *boundedQueue[*jobRecord]

	sharedMu   sync.Mutex
	completion *sync.Cond
	xidCounter atomic.Uint64

	state *fastState

	diag           *diagLogger
	metricsEnabled bool
	metrics        managerMetrics
}

// NewManager allocates a Manager's job-record pool and starts its worker
// goroutines. The pool (sized by WithFreeListSize) is the single allocation
// made for the manager's lifetime; no further allocation occurs on the
// submission hot path beyond what boundedQueue/boundedStack's fixed buffers
// already reserved.
func NewManager(opts ...Option) (*Manager, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		opts:           cfg,
		instances:      make([]jobRecord, cfg.freeListSize),
		workers:        make([]worker, cfg.numThreads),
		freeList:       newBoundedStack[*jobRecord](cfg.freeListSize),
		readyList:      newBoundedQueue[*jobRecord](cfg.readyListSize),
		state:          newFastState(stateAwake),
		metricsEnabled: cfg.metrics,
		diag:           newDiagLogger(cfg.logHandler, cfg.logLevel, cfg.name, cfg.diagRates),
	}
	m.completion = sync.NewCond(&m.sharedMu)
	// The xid counter starts at 1 (via pre-increment on first use), so
	// doneXID==0 is never a live generation.
	m.xidCounter.Store(0)

	for i := range m.instances {
		m.instances[i].bind(m.freeList, m.readyList, &m.sharedMu, m.completion, &m.xidCounter)
		m.freeList.push(&m.instances[i])
	}

	m.state.store(stateRunning)

	m.wg.Add(cfg.numThreads)
	for i := range m.workers {
		m.workers[i] = worker{mgr: m, index: i}
		go m.workers[i].loop()
	}

	m.diag.info().Int("threads", cfg.numThreads).Int("free_list_size", cfg.freeListSize).
		Int("ready_list_size", cfg.readyListSize).Log("manager started")

	return m, nil
}

// popFree pops a record from the free list, logging (rate-limited) a
// diagnostic line if the pool is exhausted and the caller must block.
func (m *Manager) popFree() *jobRecord {
	assertAlways(m.state.canAcceptWork(), "submission while the manager is not running")
	if m.freeList.len() == 0 {
		if m.metricsEnabled {
			m.metrics.poolWaits.Add(1)
		}
		m.diag.diagRateLimited("pool-exhaustion", "free list empty, submission blocking")
	}
	rec := m.freeList.pop()
	if m.metricsEnabled {
		m.metrics.submitted.Add(1)
	}
	return rec
}

// InsertReady submits r as an immediately-runnable job with no antecedents.
func (m *Manager) InsertReady(r Runnable, args Args) Handle {
	rec := m.popFree()
	h := rec.initialize(r, 0, args)
	m.readyList.enqueue(rec)
	return h
}

// InsertReadyBatch submits runnables as a set of independent, immediately-
// runnable jobs, returning a single aggregator Handle that completes once
// every job in the batch has. argsList must have length 0, 1, or
// len(runnables): 0 means no arguments, 1 broadcasts the same Args to every
// job, and len(runnables) supplies one Args per job.
func (m *Manager) InsertReadyBatch(runnables []Runnable, argsList []Args) (Handle, error) {
	if err := validateBatchArgs(len(runnables), len(argsList)); err != nil {
		return Handle{}, err
	}
	assertAlways(m.state.canAcceptWork(), "submission while the manager is not running")

	recs := make([]*jobRecord, len(runnables)+1)
	m.freeList.popBatch(recs)

	wrap := recs[len(runnables)]
	h := wrap.initialize(nil, uintptr(len(runnables)), Args{})

	for i, r := range runnables {
		recs[i].initialize(r, 0, pickArgs(argsList, i))
		wrap.appendAntecedentNotStartedNoLock(recs[i])
	}

	if len(runnables) == 0 {
		// No antecedents to wait on: the aggregator is already enabled and
		// must be enqueued directly, since nothing will ever call notify on it.
		m.readyList.enqueue(wrap)
	} else {
		m.readyList.enqueueBatch(recs[:len(runnables)])
	}
	if m.metricsEnabled {
		m.metrics.submitted.Add(uint64(len(runnables)))
	}
	return h, nil
}

// InsertBlocked submits r as a job parked behind a single barrier count: it
// will not run until ReleaseBarrier (or a releaser from AddBarrier) fires.
func (m *Manager) InsertBlocked(r Runnable, args Args) BlockedHandle {
	rec := m.popFree()
	return BlockedHandle{Handle: rec.initialize(r, 1, args)}
}

// InsertBlockedBatch submits runnables as a set of jobs that all share a
// single barrier: none of them runs until the returned BlockedHandle's
// barrier is released, at which point all become simultaneously eligible.
// This is the reverse of InsertReadyBatch's fan-in: here the aggregator is
// the antecedent of every job in the batch, not the other way around (see
// the corresponding Open Question resolution in the design notes).
func (m *Manager) InsertBlockedBatch(runnables []Runnable, argsList []Args) (BlockedHandle, error) {
	if err := validateBatchArgs(len(runnables), len(argsList)); err != nil {
		return BlockedHandle{}, err
	}
	assertAlways(m.state.canAcceptWork(), "submission while the manager is not running")

	recs := make([]*jobRecord, len(runnables)+1)
	m.freeList.popBatch(recs)

	wrap := recs[len(runnables)]
	h := wrap.initialize(nil, 1, Args{})

	for i, r := range runnables {
		// Each job's sole antecedent is the gate: it becomes eligible only
		// when wrap's barrier is fully released and wrap's own completion
		// walks its successor list (see jobRecord.run).
		recs[i].initialize(r, 1, pickArgs(argsList, i))
		recs[i].appendAntecedentNotStartedNoLock(wrap)
	}
	if m.metricsEnabled {
		m.metrics.submitted.Add(uint64(len(runnables)))
	}

	return BlockedHandle{Handle: h}, nil
}

// InsertAfter submits r to run once every handle in deps has completed.
// Handles that have already completed by the time this call acquires the
// shared mutex are counted and released immediately, so a fully-satisfied
// dependency set schedules r without ever parking it.
func (m *Manager) InsertAfter(r Runnable, args Args, deps []Handle) Handle {
	rec := m.popFree()
	h := BlockedHandle{Handle: rec.initialize(r, uintptr(len(deps)), args)}
	if len(deps) == 0 {
		// Nothing to wait on and nothing will ever notify it: enqueue directly.
		m.readyList.enqueue(rec)
		return h.Handle
	}

	skipped := rec.appendAntecedents(deps)
	if skipped != 0 {
		h.ReleaseBarrier(skipped)
	}

	return h.Handle
}

// Shutdown transitions the manager to terminating, wakes every worker with
// a sentinel nil, and blocks until all have exited. It then asserts the
// free list has returned to full capacity (every submitted job ran to
// completion) before marking the manager terminated.
//
// Runnables must not call Shutdown themselves.
func (m *Manager) Shutdown() {
	assertAlways(m.state.tryTransition(stateRunning, stateTerminating), "Shutdown called on a non-running manager")

	for range m.workers {
		m.readyList.enqueue(nil)
	}
	m.wg.Wait()

	assertAlways(m.freeList.full(), "shutdown with outstanding work: free list not at capacity")

	m.state.store(stateTerminated)
	m.diag.info().Log("manager terminated")
}

func validateBatchArgs(runnableCount, argsCount int) error {
	if argsCount != 0 && argsCount != 1 && argsCount != runnableCount {
		return ErrBatchArgsLength
	}
	return nil
}

func pickArgs(argsList []Args, i int) Args {
	switch len(argsList) {
	case 0:
		return Args{}
	case 1:
		return argsList[0]
	default:
		return argsList[i]
	}
}
