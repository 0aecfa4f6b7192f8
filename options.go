package jobsched

import (
	"errors"
	"log/slog"
	"time"

	"github.com/joeycumines/logiface"
)

// options holds resolved, validated Manager configuration.
type options struct {
	name          string
	numThreads    int
	freeListSize  int
	readyListSize int
	logHandler    slog.Handler
	logLevel      logiface.Level
	diagRates     map[time.Duration]int
	metrics       bool
}

// Option configures a Manager at construction time.
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(o *options) error { return f(o) }

// WithName sets the Manager's name, used to label log lines and metrics.
// Defaults to "jobsched" if not set.
func WithName(name string) Option {
	return optionFunc(func(o *options) error {
		o.name = name
		return nil
	})
}

// WithThreads sets the number of worker goroutines. Must be positive.
func WithThreads(n int) Option {
	return optionFunc(func(o *options) error {
		o.numThreads = n
		return nil
	})
}

// WithFreeListSize sets the size of the job-record pool, i.e. the maximum
// number of jobs outstanding (parked, ready, or executing) at any time. Must
// be positive.
func WithFreeListSize(n int) Option {
	return optionFunc(func(o *options) error {
		o.freeListSize = n
		return nil
	})
}

// WithReadyListSize sets the capacity of the ready queue. Must be positive.
// Sized to absorb the burst rate of jobs becoming enabled simultaneously;
// undersizing it only affects backpressure, never correctness.
func WithReadyListSize(n int) Option {
	return optionFunc(func(o *options) error {
		o.readyListSize = n
		return nil
	})
}

// WithLogger configures structured logging, backed by the given slog.Handler
// at the given minimum level. Without this option, the Manager logs nothing
// (a disabled logiface.Logger, costing nothing on the hot path).
func WithLogger(handler slog.Handler, level logiface.Level) Option {
	return optionFunc(func(o *options) error {
		o.logHandler = handler
		o.logLevel = level
		return nil
	})
}

// WithDiagnosticRateLimit bounds the rate of recurring diagnostic log lines
// (e.g. repeated pool-exhaustion waits) per category, using the same
// rate-description shape as catrate.NewLimiter: a map of window duration to
// the number of events allowed per window.
func WithDiagnosticRateLimit(rates map[time.Duration]int) Option {
	return optionFunc(func(o *options) error {
		o.diagRates = rates
		return nil
	})
}

// WithMetrics enables lightweight atomic counters (submitted, completed,
// pool-exhaustion waits), readable via Manager.Metrics.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(o *options) error {
		o.metrics = enabled
		return nil
	})
}

// resolveOptions applies opts over a set of defaults and validates the
// result, mirroring eventloop's resolveLoopOptions.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		name:          "jobsched",
		numThreads:    1,
		freeListSize:  64,
		readyListSize: 64,
		logLevel:      logiface.LevelInformational,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.numThreads <= 0 {
		return nil, errors.New("jobsched: NumThreads must be positive")
	}
	if cfg.freeListSize <= 0 {
		return nil, errors.New("jobsched: FreeListSize must be positive")
	}
	if cfg.readyListSize <= 0 {
		return nil, errors.New("jobsched: ReadyListSize must be positive")
	}
	return cfg, nil
}
