package jobsched

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// managerState is a lock-free lifecycle state machine for a *Manager,
// patterned on the event loop's FastState: pure atomic CAS, no mutex, no
// validation beyond the CAS itself.
type managerState uint64

const (
	// stateAwake indicates the manager has been allocated but Init has not
	// yet started its workers.
	stateAwake managerState = iota
	// stateRunning indicates the worker pool is active and accepting
	// submissions.
	stateRunning
	// stateTerminating indicates Shutdown has been called; sentinel nils
	// have been (or are being) enqueued and workers are draining.
	stateTerminating
	// stateTerminated indicates every worker goroutine has exited and the
	// free list has been confirmed full.
	stateTerminated
)

func (s managerState) String() string {
	switch s {
	case stateAwake:
		return "Awake"
	case stateRunning:
		return "Running"
	case stateTerminating:
		return "Terminating"
	case stateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState wraps an atomic.Uint64 with cache-line padding on both sides, so
// that the frequently-read lifecycle flag never false-shares a line with
// neighboring Manager fields.
type fastState struct {
	_ cpu.CacheLinePad
	v atomic.Uint64
	_ cpu.CacheLinePad
}

func newFastState(initial managerState) *fastState {
	s := &fastState{}
	s.v.Store(uint64(initial))
	return s
}

func (s *fastState) load() managerState {
	return managerState(s.v.Load())
}

func (s *fastState) store(state managerState) {
	s.v.Store(uint64(state))
}

func (s *fastState) tryTransition(from, to managerState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *fastState) canAcceptWork() bool {
	return s.load() == stateRunning
}
