package lamp

import (
	"context"
	"time"

	"github.com/sweeney/lamp-controller/internal/logger"
	"github.com/sweeney/lamp-controller/internal/logic"
)

func (r *Reconciler) monitor(ctx context.Context) {
	defer r.wg.Done()

	ticks := r.ticks
	if ticks == nil {
		ticker := time.NewTicker(r.poll)
		defer ticker.Stop()
		ticks = ticker.C
	}

	logger.DebugKV(ctx, "sensor monitor started", "poll", r.poll, "debounce", r.debouncer.Duration())
	defer logger.DebugKV(ctx, "sensor monitor stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			applied := r.tick(ctx)
			if r.tickDone != nil {
				r.tickDone <- applied
			}
		}
	}
}

// tick samples the sensor once and reports whether the state changed or a
// pending change was finally persisted and announced.
// A flag whose write failed is retried before anything else, in either mode.
// Outside sensor mode the input is not read and the debouncer restarts,
// so the first sample after re-entering sensor mode starts a fresh baseline.
func (r *Reconciler) tick(ctx context.Context) bool {
	if r.unsaved.Load() {
		r.transition.Lock()
		defer r.transition.Unlock()
		return r.flush(ctx)
	}

	if !r.sensor.Load() {
		r.debouncer.Reset()
		return false
	}

	raw, err := r.in.ReadLevel()
	if err != nil {
		r.observer.Failure(FailureSensor)
		logger.WarnKV(ctx, "sensor read failed", "error", err)
		return false
	}

	level, ok := r.debouncer.Process(logic.Sample{Level: raw, Time: r.now()})
	if !ok || level == r.lamp.Load() {
		return false
	}

	r.transition.Lock()
	defer r.transition.Unlock()

	// Mode or lamp may have changed while the lock was contended.
	if !r.sensor.Load() || level == r.lamp.Load() {
		return false
	}

	return r.applyLamp(ctx, SourceAutomatic, level) == nil
}
