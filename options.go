package iocoro

import "github.com/corewire/iocoro/metrics"

// Option configures a Pool at construction time, mirroring the teacher's
// functional-option pattern.
type Option interface {
	apply(*Config) error
}

type optionFunc func(*Config) error

func (f optionFunc) apply(cfg *Config) error { return f(cfg) }

// WithWorkers sets the number of scheduler workers. Must be at least 1.
func WithWorkers(n int) Option {
	return optionFunc(func(cfg *Config) error {
		if n < 1 {
			return ErrInvalidWorkerCount
		}
		cfg.Workers = n
		return nil
	})
}

// WithPollTimeout sets the millisecond timeout the readiness worker passes
// to EpollWait on every cycle. Lower values make shutdown and newly
// registered fds visible sooner at the cost of busier polling.
func WithPollTimeout(ms int) Option {
	return optionFunc(func(cfg *Config) error {
		if ms < 0 {
			return ErrInvalidPollTimeout
		}
		cfg.PollTimeoutMillis = ms
		return nil
	})
}

// WithEventBuffer sets the number of epoll events fetched per Wait call.
func WithEventBuffer(n int) Option {
	return optionFunc(func(cfg *Config) error {
		if n < 1 {
			return ErrInvalidEventBuffer
		}
		cfg.EventBufferSize = n
		return nil
	})
}

// WithMetrics installs a metrics Provider. The default is a no-op
// provider, matching the teacher's default-off stance on instrumentation
// overhead.
func WithMetrics(provider metrics.Provider) Option {
	return optionFunc(func(cfg *Config) error {
		cfg.Metrics = provider
		return nil
	})
}

// WithLogger installs a Logger. The default is NoopLogger.
func WithLogger(logger Logger) Option {
	return optionFunc(func(cfg *Config) error {
		cfg.Logger = logger
		return nil
	})
}

func resolveOptions(opts []Option) (*Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
