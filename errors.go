package iocoro

import (
	"errors"
	"strconv"
)

// Namespace prefixes every sentinel error below, following the namespaced
// sentinel convention of the pack's worker-pool library.
const Namespace = "iocoro"

var (
	// ErrPoolNotInitialized is returned by Submit/SubmitJoin when called
	// before Init or after Shutdown.
	ErrPoolNotInitialized = errors.New(Namespace + ": pool not initialized")

	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New(Namespace + ": pool already initialized")

	// ErrDoubleWait is returned by a second call to Wait on the same Task.
	ErrDoubleWait = errors.New(Namespace + ": task already waited on")

	// ErrNotJoinable is the value Wait panics with when called on a Task
	// produced by Submit rather than SubmitJoin (spec.md §9, joiner-lifetime
	// decision).
	ErrNotJoinable = errors.New(Namespace + ": task was not submitted with SubmitJoin")

	// ErrInvalidWorkerCount is returned by WithWorkers(n) for n < 1.
	ErrInvalidWorkerCount = errors.New(Namespace + ": worker count must be at least 1")

	// ErrInvalidPollTimeout is returned by WithPollTimeout for a negative value.
	ErrInvalidPollTimeout = errors.New(Namespace + ": poll timeout must not be negative")

	// ErrInvalidEventBuffer is returned by WithEventBuffer(n) for n < 1.
	ErrInvalidEventBuffer = errors.New(Namespace + ": event buffer size must be at least 1")

	// ErrTaskAbandoned is the return value observed by a joiner of a task
	// still in-flight when Shutdown abandons it (spec.md §4.3,
	// "Cancellation / termination").
	ErrTaskAbandoned = errors.New(Namespace + ": task abandoned at shutdown")
)

// ProtocolViolationError is fatal (spec.md §7, item 4): a coroutine resumed
// and returned control to its worker without either registering valid I/O
// state and suspending, or reaching DONE. There is no recovery; the
// scheduler worker that observes this aborts the process after logging,
// per spec.md §4.3's closing note.
type ProtocolViolationError struct {
	WorkerIndex int
	Detail      string
}

func (e *ProtocolViolationError) Error() string {
	return Namespace + ": protocol violation on worker " +
		strconv.Itoa(e.WorkerIndex) + ": " + e.Detail
}

// ReadinessFailureError wraps a fatal, non-EINTR error returned by the
// readiness facility (spec.md §7, item 5). It terminates the readiness
// goroutine; the runtime cannot function without it.
type ReadinessFailureError struct {
	Cause error
}

func (e *ReadinessFailureError) Error() string {
	return Namespace + ": readiness facility failed: " + e.Cause.Error()
}

// Unwrap exposes the underlying syscall error for errors.Is/errors.As,
// following the cause-chain convention the teacher uses for its own
// fatal-condition error types.
func (e *ReadinessFailureError) Unwrap() error {
	return e.Cause
}
