// Package iocoro provides a user-space, multi-threaded coroutine runtime for
// non-blocking network I/O on Linux.
//
// # Architecture
//
// A [Pool] multiplexes a large number of lightweight [Task]s across a small,
// fixed number of scheduler workers. Each worker owns an intake queue and a
// private run-list; it resumes every runnable task in its run-list once per
// cycle, round-robin, and idles on a condition variable when both are empty.
// A single readiness worker owns the epoll instance: it blocks in
// EpollWait, and for every readiness event it flips the corresponding task
// from IO_WAIT back to RUNNABLE and wakes the task's owning worker.
//
// A [Task] wraps a coroutine: a goroutine paired with an unbuffered resume/
// yield channel handshake, since Go has no native suspendable-function
// primitive. Calling resume on a Task runs its coroutine until the next
// await point or completion, then returns control to the calling worker —
// never blocking on unrelated I/O.
//
// The four async operations — Accept, Connect, Read, Write — are exposed as
// plain functions in awaitable.go rather than methods on an interface; each
// follows a ready-check / suspend / resume-once protocol described in
// the comment at the top of awaitable.go.
//
// # Platform Support
//
// Only Linux epoll is supported; this is an explicit Non-goal of portability
// to other platforms or I/O multiplexing mechanisms.
//
// # Thread Safety
//
// [Pool.Submit] and [Pool.SubmitJoin] are safe to call from any goroutine.
// A Task's coroutine body itself only ever runs on its owning worker; the
// readiness goroutine and other workers only ever touch a Task's atomic
// state and its single epoll registration, never its coroutine goroutine
// directly.
//
// # Usage
//
//	pool, err := iocoro.New(iocoro.WithWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := pool.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown(context.Background())
//
//	go pool.Evloop(context.Background())
//
//	task, err := pool.Submit(func(t *iocoro.Task) error {
//	    n, err := iocoro.Read(t, fd, buf)
//	    ...
//	    return err
//	})
//
// # Error Types
//
// The package provides a small, fatal-condition-focused error taxonomy:
//   - [ProtocolViolationError]: a coroutine returned control without
//     suspending on valid I/O or completing.
//   - [ReadinessFailureError]: the epoll facility failed with an
//     unrecoverable error.
//
// [ReadinessFailureError] implements Unwrap for cause-chain inspection;
// [ProtocolViolationError] carries no underlying cause and has no Unwrap.
package iocoro
