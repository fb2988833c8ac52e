package reactive

import (
	"context"
	"sync"
)

// Task is a unit of deferred work. It receives the context Flush was called with.
type Task func(ctx context.Context)

// Scheduler queues deferred tasks and runs them when Flush is called, in the
// order they were deferred. Tasks deferred while flushing run in the same
// Flush call.
type Scheduler struct {
	mu    sync.Mutex
	queue []Task
	ran   uint64
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Defer queues fn to run on the next Flush.
func (s *Scheduler) Defer(fn Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

// Pending returns the number of queued tasks
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Ran returns the number of tasks run since the scheduler was created.
func (s *Scheduler) Ran() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran
}

// Flush runs queued tasks until the queue is empty or ctx is done. Tasks that
// keep deferring more work make Flush run until ctx is cancelled, in which case
// the remaining tasks stay queued and ctx.Err() is returned.
func (s *Scheduler) Flush(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return nil
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.ran++
		s.mu.Unlock()

		task(ctx)
	}
}

// Clear drops every queued task without running it.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}
