package iocoro

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/corewire/iocoro/metrics"
)

// schedulerWorker is one scheduler worker (spec.md §3/§4.3): it owns an
// intake queue, a private run-list, and a condition variable for idle
// sleep. Only this worker's own goroutine ever touches runlist; producers
// (Submit/SubmitJoin) only ever touch intake, under its mutex.
type schedulerWorker struct {
	index int

	in intake

	mu        sync.Mutex
	cond      *sync.Cond
	terminate bool

	taskCount atomic.Int64

	poller *poller
	log    Logger
	metric metrics.Provider

	// track notifies the readiness worker which Task owns a newly
	// registered fd, so a later event on that fd can be mapped back.
	track func(fd int, t *Task)

	// untrack removes a fd's association once it no longer identifies a
	// live IO_WAIT registration, so the readiness worker's fd map doesn't
	// grow without bound over the pool's lifetime.
	untrack func(fd int)

	runningGauge  metrics.UpDownCounter
	resumeLatency metrics.Histogram
}

func newSchedulerWorker(index int, p *poller, track func(fd int, t *Task), untrack func(fd int), log Logger, metric metrics.Provider) *schedulerWorker {
	w := &schedulerWorker{
		index:   index,
		poller:  p,
		track:   track,
		untrack: untrack,
		log:     log,
		metric:  metric,
	}
	w.cond = sync.NewCond(&w.mu)
	w.runningGauge = metric.UpDownCounter("iocoro.worker.task_count",
		metrics.WithDescription("live tasks owned by the pool's scheduler workers"))
	w.resumeLatency = metric.Histogram("iocoro.worker.resume_latency",
		metrics.WithDescription("wall time spent inside a single coroutine resume, from handoff to next suspend or completion"),
		metrics.WithUnit("seconds"))
	return w
}

// submit enqueues a freshly constructed task on this worker's intake and
// wakes it (spec.md §4.6 steps 3-4).
func (w *schedulerWorker) submit(t *Task) {
	w.in.push(t)
	w.taskCount.Add(1)
	w.runningGauge.Add(1)
	w.mu.Lock()
	w.cond.Signal()
	w.mu.Unlock()
}

// taskCountSnapshot is read by the pool's argmin dispatch policy
// (spec.md §4.6) without requiring the worker's own lock: task_count is
// tracked as an atomic counter precisely so a short dispatch critical
// section elsewhere doesn't need to reach into worker internals.
func (w *schedulerWorker) taskCountSnapshot() int64 {
	return w.taskCount.Load()
}

// stop requests the worker's loop to exit at its next list-boundary
// check and wakes it if it is currently sleeping on the condvar
// (spec.md §4.3, "Cancellation / termination").
func (w *schedulerWorker) stop() {
	w.mu.Lock()
	w.terminate = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

// run is the worker's scheduling loop (spec.md §4.3).
func (w *schedulerWorker) run() {
	var runlist []*Task

	for {
		w.mu.Lock()
		for {
			if w.terminate {
				w.mu.Unlock()
				w.drainAbandoned(w.in.drainInto(runlist))
				return
			}
			runlist = w.in.drainInto(runlist)
			if !w.in.empty() || hasRunnable(runlist) {
				break
			}
			w.cond.Wait()
		}
		w.mu.Unlock()

		runlist = w.roundRobin(runlist)
	}
}

// hasRunnable reports whether runlist contains at least one task not
// currently parked in IO_WAIT. A run-list holding only IO_WAIT tasks has
// no schedulable work; the worker must condvar-sleep rather than spin
// (spec.md §8: "the worker sleeps on its condvar when the run-list holds
// only IO_WAIT tasks").
func hasRunnable(runlist []*Task) bool {
	for _, t := range runlist {
		if t.State() != StateIOWait {
			return true
		}
	}
	return false
}

// roundRobin performs one pass over runlist, resuming every RUNNABLE
// task once, registering newly IO_WAIT tasks with the readiness
// facility, and reaping DONE tasks (spec.md §4.3 step 3).
func (w *schedulerWorker) roundRobin(runlist []*Task) []*Task {
	kept := runlist[:0]
	for _, t := range runlist {
		if t.State() == StateIOWait {
			kept = append(kept, t)
			continue
		}

		start := time.Now()
		t.resume()
		w.resumeLatency.Record(time.Since(start).Seconds())

		switch t.State() {
		case StateIOWait:
			if t.registeredFD != -1 && t.registeredFD != t.fd {
				w.untrack(t.registeredFD)
				_ = w.poller.Unregister(t.registeredFD)
			}
			w.track(t.fd, t)
			t.registeredFD = t.fd
			if err := w.poller.RegisterOrUpdate(t.fd, t.events); err != nil {
				w.log.Log(LogEntry{
					Level:    LevelError,
					Category: "worker",
					WorkerID: w.index,
					TaskID:   t.id,
					FD:       t.fd,
					Message:  "registration failed",
					Err:      err,
				})
			}
			kept = append(kept, t)
		case StateDone:
			w.reap(t)
		default:
			pv := &ProtocolViolationError{
				WorkerIndex: w.index,
				Detail:      "coroutine resumed and returned without suspending or completing",
			}
			w.log.Log(LogEntry{
				Level:    LevelError,
				Category: "worker",
				WorkerID: w.index,
				TaskID:   t.id,
				Message:  "protocol violation",
				Err:      pv,
			})
			panic(pv)
		}
	}
	return kept
}

// reap removes a completed task from bookkeeping. A plain Submit task is
// destroyed immediately (there is nothing to destroy explicitly in Go
// beyond letting it become unreachable); a SubmitJoin task is left for
// its joiner to consume via Wait, which is already unblocked because
// run() closed done before yielding for the last time.
func (w *schedulerWorker) reap(t *Task) {
	if t.registeredFD != -1 {
		w.untrack(t.registeredFD)
		_ = w.poller.Unregister(t.registeredFD)
	}
	w.taskCount.Add(-1)
	w.runningGauge.Add(-1)
}

// drainAbandoned runs once at shutdown: in-flight coroutines are
// abandoned, not resumed to completion (spec.md §4.3), but any joiner
// still waiting must be unblocked rather than left hanging forever.
func (w *schedulerWorker) drainAbandoned(runlist []*Task) {
	for _, t := range runlist {
		if t.state.Load() != StateDone {
			t.state.Store(StateDone)
			t.returnValue = ErrTaskAbandoned
			close(t.done)
		}
	}
}
