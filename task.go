package iocoro

import "sync/atomic"

// CoroutineFunc is a coroutine body. It runs on its owning worker and may
// suspend at any of the four awaitables (Accept, Connect, Read, Write).
type CoroutineFunc func(t *Task) error

var nextTaskID atomic.Int64

// Task is one scheduled coroutine instance, matching spec.md §3's Task:
// a resumable handle, a lifecycle state, the descriptor/event mask it is
// parked on while IO_WAIT, its return value, and a one-shot completion
// signal for an external joiner. Only the owning worker's goroutines
// (the coroutine body and the resuming worker loop) ever touch fd/events/
// returnValue; the readiness worker only ever touches state.
type Task struct {
	id    int64
	state *taskState

	fd     int
	events ReadyEvents

	// registeredFD is the last fd this task was actually registered with
	// the readiness facility under, or -1 if none yet. Owned exclusively
	// by the owning worker's roundRobin, so it can tell a re-suspend on
	// the same fd (the common case) from one on a different fd, and so
	// reap knows whether there is a registration left to untrack.
	registeredFD int

	returnValue error
	done        chan struct{}

	// joiner is fixed at submission time (Submit vs SubmitJoin) rather
	// than mutated later, resolving spec.md §9's joiner-lifetime open
	// question: a late-set joiner flag can never race final-suspend.
	joiner bool

	// owner identifies the worker this task is pinned to for its entire
	// lifetime (spec.md §3). Carrying only this reference, rather than
	// the task and the worker referencing each other through a shared
	// registry, keeps the wake path one-directional (spec.md §9).
	owner *schedulerWorker

	waited atomic.Bool

	resumeCh chan struct{}
	yieldCh  chan struct{}
}

func newTask(fn CoroutineFunc, owner *schedulerWorker, joiner bool) *Task {
	t := &Task{
		id:           nextTaskID.Add(1),
		state:        newTaskState(),
		registeredFD: -1,
		done:         make(chan struct{}),
		joiner:       joiner,
		owner:        owner,
		resumeCh:     make(chan struct{}),
		yieldCh:      make(chan struct{}),
	}
	go t.run(fn)
	return t
}

// ID returns a process-unique identifier for this task, stable for its
// lifetime. Useful for logging and metrics correlation.
func (t *Task) ID() int64 { return t.id }

// State returns the task's current lifecycle state.
func (t *Task) State() TaskState { return t.state.Load() }

// run is the coroutine's goroutine body. It blocks immediately on
// resumeCh so construction never executes any of fn (spec.md §4.1: "the
// coroutine is constructed in a pre-suspended state").
func (t *Task) run(fn CoroutineFunc) {
	<-t.resumeCh

	returnValue := t.invoke(fn)

	t.returnValue = returnValue
	t.state.Store(StateDone)
	close(t.done)
	t.yieldCh <- struct{}{}
}

func (t *Task) invoke(fn CoroutineFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CoroutinePanicError{Recovered: r}
		}
	}()
	return fn(t)
}

// resume runs the coroutine until its next suspension or completion. It
// must only be called by the task's owning worker.
func (t *Task) resume() {
	t.resumeCh <- struct{}{}
	<-t.yieldCh
}

// suspend is called from within the coroutine's own goroutine by an
// awaitable that observed "would block" (spec.md §4.2, phase 2). It
// records the descriptor/event mask, transitions to IO_WAIT, and hands
// control back to the resuming worker until the next resume.
func (t *Task) suspend(fd int, events ReadyEvents) {
	t.fd = fd
	t.events = events
	t.state.Store(StateIOWait)
	t.yieldCh <- struct{}{}
	<-t.resumeCh
}

// Wait blocks until the task completes and returns whatever its
// coroutine body returned. It must be called at most once, and only on
// a Task produced by SubmitJoin — calling it on a plain Submit task is a
// programming error, and since a Submit task is destroyed by its owning
// worker on completion rather than preserved for a joiner, this panics
// immediately rather than racing that destruction. A second call returns
// ErrDoubleWait instead of panicking, since by the time it happens the
// first caller has already safely observed returnValue and there is
// nothing left to race.
func (t *Task) Wait() error {
	if !t.joiner {
		panic(ErrNotJoinable)
	}
	if !t.waited.CompareAndSwap(false, true) {
		return ErrDoubleWait
	}
	<-t.done
	return t.returnValue
}

// CoroutinePanicError wraps a value recovered from a panic inside a
// coroutine body (spec.md §4.1: "the coroutine's body reporting an
// unhandled internal fault is a fatal condition for the runtime"). This
// runtime converts it to a well-defined error return rather than
// aborting the process, per the alternative spec.md explicitly allows.
type CoroutinePanicError struct {
	Recovered interface{}
}

func (e *CoroutinePanicError) Error() string {
	return Namespace + ": coroutine panicked"
}
