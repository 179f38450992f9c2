package iocoro

import (
	"context"
	"sync"
)

// Pool is the composition of every scheduler worker plus the single
// readiness worker (spec.md §3/§4.5). Construct one with New, start it
// with Init, and stop it with Shutdown. Pool is not a singleton: each
// call to New returns an independent Pool with its own workers and
// readiness facility.
type Pool struct {
	cfg *Config

	mu          sync.Mutex
	initialized bool
	terminated  bool

	poller    *poller
	wake      *wakeFd
	readiness *readinessWorker
	workers   []*schedulerWorker

	wg sync.WaitGroup
}

// New validates opts against defaultConfig and returns an uninitialized
// Pool. Call Init to construct the readiness facility and start every
// worker goroutine.
func New(opts ...Option) (*Pool, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Pool{cfg: cfg}, nil
}

// Init constructs the readiness facility and starts the readiness
// worker plus every scheduler worker goroutine (spec.md §4.5's init).
// Calling Init twice returns ErrAlreadyInitialized.
func (p *Pool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return ErrAlreadyInitialized
	}

	pl, err := newPoller(p.cfg.EventBufferSize)
	if err != nil {
		return err
	}
	wake, err := newWakeFd()
	if err != nil {
		_ = pl.Close()
		return err
	}
	if err := pl.AddWake(wake.fd); err != nil {
		_ = pl.Close()
		_ = wake.Close()
		return err
	}

	rw := newReadinessWorker(pl, wake, p.cfg.PollTimeoutMillis, p.cfg.Logger, p.cfg.Metrics)

	workers := make([]*schedulerWorker, p.cfg.Workers)
	for i := range workers {
		workers[i] = newSchedulerWorker(i, pl, rw.track, rw.untrack, p.cfg.Logger, p.cfg.Metrics)
	}

	p.poller = pl
	p.wake = wake
	p.readiness = rw
	p.workers = workers
	p.initialized = true

	p.wg.Add(len(workers) + 1)
	go func() {
		defer p.wg.Done()
		rw.run()
	}()
	for _, w := range workers {
		w := w
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}

	p.cfg.Logger.Log(LogEntry{
		Level:    LevelInfo,
		Category: "pool",
		Message:  "pool initialized",
		Context:  map[string]interface{}{"workers": len(workers)},
	})
	return nil
}

// Submit constructs a coroutine from fn, picks the worker with the
// smallest task_count (ties broken by lowest index — spec.md §4.6's
// argmin dispatch policy, the documented intent rather than the
// always-worker-0 behavior it superseded), and enqueues it there. The
// returned Task is destroyed by its owning worker on completion and must
// not be passed to Wait; use SubmitJoin if the result is needed.
func (p *Pool) Submit(fn CoroutineFunc) (*Task, error) {
	return p.submit(fn, false)
}

// SubmitJoin is like Submit, but fixes joiner_present at submission time
// (spec.md §9's resolution of the joiner-lifetime open question) so the
// returned Task may be passed to Wait exactly once.
func (p *Pool) SubmitJoin(fn CoroutineFunc) (*Task, error) {
	return p.submit(fn, true)
}

func (p *Pool) submit(fn CoroutineFunc, joiner bool) (*Task, error) {
	p.mu.Lock()
	if !p.initialized || p.terminated {
		p.mu.Unlock()
		return nil, ErrPoolNotInitialized
	}
	w := p.argminWorker()
	p.mu.Unlock()

	t := newTask(fn, w, joiner)
	w.submit(t)
	return t, nil
}

// Wait joins a Task produced by SubmitJoin, matching spec.md §6's
// top-level wait(Task) -> return_value entry point.
func (p *Pool) Wait(t *Task) error {
	return t.Wait()
}

// argminWorker picks the worker with the fewest live tasks, ties broken
// by lowest index. Called with p.mu held, giving the scan the "short
// critical section" spec.md §9 calls for.
func (p *Pool) argminWorker() *schedulerWorker {
	best := p.workers[0]
	bestCount := best.taskCountSnapshot()
	for _, w := range p.workers[1:] {
		if c := w.taskCountSnapshot(); c < bestCount {
			best, bestCount = w, c
		}
	}
	return best
}

// Shutdown sets the pool-wide termination flag, wakes every worker and
// the readiness worker, and waits for all of them to exit, bounded by
// ctx (spec.md §4.5's shutdown).
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.initialized || p.terminated {
		p.mu.Unlock()
		return nil
	}
	p.terminated = true
	workers := p.workers
	rw := p.readiness
	pl := p.poller
	wake := p.wake
	p.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
	rw.requestStop()

	if err := p.Evloop(ctx); err != nil {
		return err
	}

	_ = pl.Close()
	_ = wake.Close()
	return nil
}

// Evloop blocks the calling goroutine until every worker and the
// readiness worker has exited, or ctx is done first (spec.md §4.5's
// evloop — "equivalent to joining").
func (p *Pool) Evloop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
