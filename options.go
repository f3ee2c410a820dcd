package asyncio

import "time"

// loopOptions holds configuration resolved from a slice of [Option].
type loopOptions struct {
	logger Logger
	clock  func() time.Time
}

// Option configures a [Loop] at construction time.
type Option interface {
	apply(*loopOptions)
}

type optionFunc func(*loopOptions)

func (f optionFunc) apply(o *loopOptions) { f(o) }

// WithLogger installs a structured [Logger] for loop lifecycle events and
// recovered task panics. The default logger discards everything below
// [LevelWarn].
func WithLogger(logger Logger) Option {
	return optionFunc(func(o *loopOptions) {
		if logger != nil {
			o.logger = logger
		}
	})
}

// WithClock overrides the loop's source of the current time. Intended for
// deterministic timer tests; production callers should not need it.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *loopOptions) {
		if now != nil {
			o.clock = now
		}
	})
}

func resolveOptions(opts []Option) *loopOptions {
	cfg := &loopOptions{
		logger: NewDefaultLogger(LevelWarn),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(cfg)
		}
	}
	return cfg
}
