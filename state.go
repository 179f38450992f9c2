package iocoro

import "sync/atomic"

// TaskState represents the lifecycle state of a Task, as described by the
// state graph in spec.md §3.
//
// Legal transitions:
//
//	RUNNABLE -> IO_WAIT   (worker registers the task with the readiness facility)
//	IO_WAIT  -> RUNNABLE  (readiness goroutine observes the event)
//	RUNNABLE -> DONE      (the coroutine body returned)
//
// No other transition is legal; any other observed transition is a
// protocol violation (spec.md §7, item 4). The one exception is shutdown:
// a worker's drainAbandoned marks every unfinished task DONE, whatever
// its current state.
type TaskState uint32

const (
	// StateRunnable is the initial state: the task is either in a
	// worker's intake queue, or in that worker's run-list awaiting resume.
	StateRunnable TaskState = iota
	// StateIOWait means the task is parked on exactly one registration
	// in the readiness facility; it stays in its worker's run-list but is
	// skipped there until the readiness worker makes it RUNNABLE again.
	StateIOWait
	// StateDone means the coroutine body has returned; its return value
	// and completion signal have been set.
	StateDone
)

// String returns a human-readable representation of the state.
func (s TaskState) String() string {
	switch s {
	case StateRunnable:
		return "RUNNABLE"
	case StateIOWait:
		return "IO_WAIT"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// taskState is a lock-free atomic wrapper around TaskState, used so the
// owning worker and the readiness goroutine can both observe and mutate a
// task's state without a shared mutex (spec.md §5).
type taskState struct {
	v atomic.Uint32
}

func newTaskState() *taskState {
	s := &taskState{}
	s.v.Store(uint32(StateRunnable))
	return s
}

// Load returns the current state atomically.
func (s *taskState) Load() TaskState {
	return TaskState(s.v.Load())
}

// Store unconditionally sets the state. It is called only on the owning
// worker's side — by the coroutine's goroutine (suspend and completion)
// while the worker waits in resume, and by the worker at shutdown — which
// makes that side the sole writer of the RUNNABLE->IO_WAIT and
// RUNNABLE->DONE transitions.
func (s *taskState) Store(state TaskState) {
	s.v.Store(uint32(state))
}

// CompareAndSwap performs the IO_WAIT->RUNNABLE transition used by the
// readiness goroutine. A CAS (rather than an unconditional Store) ensures a
// duplicated or stale readiness event can never regress a task that a
// worker has already moved past RUNNABLE.
func (s *taskState) CompareAndSwap(from, to TaskState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
