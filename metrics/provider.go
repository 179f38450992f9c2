// Package metrics defines the instrument surface the scheduler and
// readiness worker record against: live task count (one instrument
// shared by all workers), readiness dispatches (tasks moved from IO_WAIT
// to RUNNABLE), and resume latency. A Pool
// is wired to a Provider via Config.Metrics / WithMetrics; the default
// is NoopProvider, so metrics collection is opt-in.
package metrics

// Provider constructs the instruments the runtime records against.
// Implementations must be safe for concurrent use: the scheduler calls
// into a Provider's instruments from every worker goroutine and from
// the readiness goroutine, including once per coroutine resume.
//
// Keep this interface minimal and stable. If you need new capabilities later,
// introduce separate optional interfaces rather than expanding this surface.
type Provider interface {
	Counter(name string, opts ...InstrumentOption) Counter
	UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter
	Histogram(name string, opts ...InstrumentOption) Histogram
}

// Counter records monotonic counts, such as readiness dispatch batches
// or suspend/resume transitions. Methods must be safe for concurrent use.
type Counter interface {
	Add(n int64)
}

// UpDownCounter records values that move up or down, such as the
// number of tasks currently owned by a scheduler worker.
// Methods must be safe for concurrent use.
type UpDownCounter interface {
	Add(n int64)
}

// Histogram records a distribution of float64 measurements, such as
// the wall-clock duration of a single coroutine resume.
// Methods must be safe for concurrent use.
type Histogram interface {
	Record(v float64)
}

// InstrumentConfig carries optional instrument metadata. It's advisory only.
type InstrumentConfig struct {
	Description string
	Unit        string
}

// InstrumentOption mutates InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets an advisory description for the instrument.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets an advisory unit for the instrument (e.g., "1", "seconds").
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}
