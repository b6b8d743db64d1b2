package slotring

import (
	"time"

	"github.com/templexxx/tsc"
	"go.uber.org/zap"
)

// DefaultCloseGrace bounds how long Close waits for blocked acquirers to leave.
const DefaultCloseGrace = 200 * time.Millisecond

// An Option configures a Ring.
type Option interface {
	apply(*options)
}

// optionFunc wraps a func so it satisfies the Option interface.
type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

type options struct {
	logger     *zap.Logger
	clock      func() int64
	closeGrace time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		logger:     zap.NewNop(),
		clock:      unixMicro,
		closeGrace: DefaultCloseGrace,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

func unixMicro() int64 {
	return tsc.UnixNano() / int64(time.Microsecond)
}

// WithLogger sets the logger used for lifecycle events (resize, clear,
// close). A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	})
}

// WithClock replaces the microsecond clock used by StampNow.
// Defaults to the TSC-backed wall clock.
func WithClock(clock func() int64) Option {
	return optionFunc(func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	})
}

// WithCloseGrace sets how long Close waits for blocked acquirers to observe
// the shutdown. Values <= 0 make Close return without waiting.
func WithCloseGrace(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.closeGrace = d
	})
}
