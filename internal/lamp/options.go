package lamp

import (
	"time"

	"github.com/sweeney/lamp-controller/internal/logic"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPollInterval sets the sensor sampling interval. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.poll = d
		}
	}
}

// WithDebounce requires a sensor level to hold for d before it is applied.
func WithDebounce(d time.Duration) Option {
	return func(r *Reconciler) {
		r.debouncer = logic.NewDebouncer(d)
	}
}

// WithObserver registers status and metrics hooks.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock replaces time.Now for debounce timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// withTicks drives the monitor from c instead of a ticker. done receives
// after every processed tick. Test hook.
func withTicks(c <-chan time.Time, done chan<- bool) Option {
	return func(r *Reconciler) {
		r.ticks = c
		r.tickDone = done
	}
}
