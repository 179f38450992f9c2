package iocoro

import (
	"sync"

	"github.com/corewire/iocoro/metrics"
)

// readinessWorker is the single I/O readiness thread (spec.md §3/§4.4):
// it owns the readiness facility, blocks in Wait with a short timeout,
// and for every reported event flips the corresponding task's state from
// IO_WAIT to RUNNABLE and wakes its owning worker.
type readinessWorker struct {
	poller      *poller
	wake        *wakeFd
	pollTimeout int

	mu       sync.Mutex
	byFD     map[int]*Task
	terminate bool

	log           Logger
	dispatchCount metrics.Counter
}

func newReadinessWorker(p *poller, wake *wakeFd, pollTimeoutMillis int, log Logger, metric metrics.Provider) *readinessWorker {
	return &readinessWorker{
		poller:        p,
		wake:          wake,
		pollTimeout:   pollTimeoutMillis,
		byFD:          make(map[int]*Task),
		log:           log,
		dispatchCount: metric.Counter("iocoro.readiness.dispatched", metrics.WithDescription("tasks transitioned IO_WAIT->RUNNABLE")),
	}
}

// track records that t is now the task registered on fd, so a later
// event for fd can be mapped back to its Task (spec.md §2: "registrations
// carry an opaque pointer identifying the waiting task"). It is called by
// the owning worker just before RegisterOrUpdate, so an event that fires
// as soon as the fd is armed already finds its task.
func (r *readinessWorker) track(fd int, t *Task) {
	r.mu.Lock()
	r.byFD[fd] = t
	r.mu.Unlock()
}

// untrack removes fd's association once its task leaves IO_WAIT for good
// (either reaped after DONE, or re-registered under a new fd), so byFD
// doesn't grow without bound over the pool's lifetime.
func (r *readinessWorker) untrack(fd int) {
	r.mu.Lock()
	delete(r.byFD, fd)
	r.mu.Unlock()
}

func (r *readinessWorker) requestStop() {
	r.mu.Lock()
	r.terminate = true
	r.mu.Unlock()
	_ = r.wake.signal()
}

// run is the readiness worker's loop (spec.md §4.4).
func (r *readinessWorker) run() {
	for {
		r.mu.Lock()
		done := r.terminate
		r.mu.Unlock()
		if done {
			return
		}

		events, err := r.poller.Wait(r.pollTimeout)
		if err != nil {
			r.log.Log(LogEntry{
				Level:    LevelError,
				Category: "readiness",
				Message:  "readiness facility failed",
				Err:      &ReadinessFailureError{Cause: err},
			})
			return
		}
		if len(events) == 0 {
			continue
		}

		for _, ev := range events {
			if ev.FD == r.wake.fd {
				r.wake.drain()
				continue
			}
			r.dispatchOne(ev)
		}
	}
}

// dispatchOne flips the target task RUNNABLE and wakes its owning
// worker. A CompareAndSwap (rather than an unconditional store) means a
// stale or duplicated event can never regress a task the owning worker
// has already resumed past IO_WAIT (spec.md §5).
func (r *readinessWorker) dispatchOne(ev ReadyEvent) {
	r.mu.Lock()
	t, ok := r.byFD[ev.FD]
	r.mu.Unlock()
	if !ok {
		return
	}

	if !t.state.CompareAndSwap(StateIOWait, StateRunnable) {
		return
	}
	r.dispatchCount.Add(1)

	t.owner.mu.Lock()
	t.owner.cond.Signal()
	t.owner.mu.Unlock()
}
