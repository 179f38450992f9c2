package iocoro

import "sync"

// intake is a worker's inbound queue (spec.md §3's SchedulerWorker.intake):
// multiple producers call push under the shared mutex; only the owning
// worker calls drainInto, at the top of its round-robin cycle.
type intake struct {
	mu      sync.Mutex
	pending []*Task
}

// push enqueues a task for first dispatch to the owning worker.
func (q *intake) push(t *Task) {
	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()
}

// drainInto moves every pending task out of intake and prepends it to
// runlist — head-insertion, so tasks submitted this cycle are scheduled
// ahead of ones already in the run-list (spec.md §4.3 step 1). Returns
// the updated run-list.
func (q *intake) drainInto(runlist []*Task) []*Task {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(pending) == 0 {
		return runlist
	}
	// pending is already oldest-first; reverse it so the very newest
	// submission ends up at index 0 after prepending.
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	return append(pending, runlist...)
}

// empty reports whether intake currently holds no pending tasks.
func (q *intake) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}
