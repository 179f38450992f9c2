package iocoro

import (
	"runtime"

	"github.com/corewire/iocoro/metrics"
)

// Config holds Pool construction parameters. Use defaultConfig() plus a
// set of Options rather than constructing Config directly.
type Config struct {
	// Workers is the number of scheduler workers (spec.md §4.3). Tasks
	// are never migrated between workers after submission (Non-goal).
	Workers int

	// PollTimeoutMillis bounds how long the readiness worker blocks in a
	// single EpollWait call.
	PollTimeoutMillis int

	// EventBufferSize is the number of epoll events fetched per Wait call.
	EventBufferSize int

	// Metrics receives instrument updates for task counts, readiness
	// dispatches, and resume latency. Defaults to a no-op provider.
	Metrics metrics.Provider

	// Logger receives structured lifecycle and fault log entries.
	// Defaults to a no-op logger.
	Logger Logger
}

// maxDefaultWorkers caps the default worker count regardless of CPU count
// (spec.md §4.5: "2×cpu scheduler workers, clamped to some maximum, e.g.
// 200"), matching original_source/naku's utils::thread_num() maxThreads.
const maxDefaultWorkers = 200

func defaultWorkerCount() int {
	cpu := runtime.GOMAXPROCS(0) * 2
	if cpu <= 0 || cpu > maxDefaultWorkers {
		return maxDefaultWorkers
	}
	return cpu
}

func defaultConfig() *Config {
	return &Config{
		Workers:           defaultWorkerCount(),
		PollTimeoutMillis: 1,
		EventBufferSize:   256,
		Metrics:           metrics.NoopProvider{},
		Logger:            NoopLogger{},
	}
}
