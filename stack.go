package jobsched

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// boundedStack is a fixed-capacity, blocking LIFO container, used as the job
// record free list: the most-recently-freed record is the most cache-hot,
// so popping from the top (rather than FIFO order) is deliberate. Same
// monitor shape as boundedQueue (see blocking_queue.h / QSBase).
type boundedStack[T any] struct {
	mu      sync.Mutex
	pushed  *sync.Cond
	popped  *sync.Cond
	buf     []T
	count   int

	_ cpu.CacheLinePad
}

func newBoundedStack[T any](capacity int) *boundedStack[T] {
	s := &boundedStack[T]{buf: make([]T, capacity)}
	s.pushed = sync.NewCond(&s.mu)
	s.popped = sync.NewCond(&s.mu)
	return s
}

func (s *boundedStack[T]) capacity() int { return len(s.buf) }

// push blocks until there is room, then pushes item onto the top.
func (s *boundedStack[T]) push(item T) {
	s.mu.Lock()
	for s.count == len(s.buf) {
		s.popped.Wait()
	}
	s.buf[s.count] = item
	s.count++
	s.mu.Unlock()
	s.pushed.Signal()
}

// pushBatch blocks until at least one slot is free, looping until every
// item in items has been pushed. Mirrors boundedQueue.enqueueBatch's
// windowed-progress contract.
func (s *boundedStack[T]) pushBatch(items []T) {
	for len(items) > 0 {
		s.mu.Lock()
		for s.count == len(s.buf) {
			s.popped.Wait()
		}
		n := minOrdered(len(s.buf)-s.count, len(items))
		for i := 0; i < n; i++ {
			s.buf[s.count] = items[i]
			s.count++
		}
		s.mu.Unlock()
		s.pushed.Signal()
		items = items[n:]
	}
}

// pop blocks until an item is available, then removes and returns the top.
func (s *boundedStack[T]) pop() T {
	s.mu.Lock()
	for s.count == 0 {
		s.pushed.Wait()
	}
	s.count--
	item := s.buf[s.count]
	var zero T
	s.buf[s.count] = zero
	s.mu.Unlock()
	s.popped.Signal()
	return item
}

// popBatch blocks until every slot in out has been filled, looping in
// windows of whatever is currently available, mirroring dequeueBatch. Each
// window takes the top items as a block, keeping their order within it, so
// a pushBatch followed by a popBatch of the same size returns the items in
// the order they were pushed.
func (s *boundedStack[T]) popBatch(out []T) {
	var zero T
	for len(out) > 0 {
		s.mu.Lock()
		for s.count == 0 {
			s.pushed.Wait()
		}
		n := minOrdered(s.count, len(out))
		base := s.count - n
		for i := 0; i < n; i++ {
			out[i] = s.buf[base+i]
			s.buf[base+i] = zero
		}
		s.count = base
		s.mu.Unlock()
		s.popped.Signal()
		out = out[n:]
	}
}

// len reports the number of items currently held. Diagnostics only.
func (s *boundedStack[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// full reports whether the stack holds every record the pool was sized
// with, i.e. nothing is outstanding. Used by Shutdown's teardown assertion.
func (s *boundedStack[T]) full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count == len(s.buf)
}
