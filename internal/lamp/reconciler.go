package lamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/lamp-controller/internal/gpio"
	"github.com/sweeney/lamp-controller/internal/logger"
	"github.com/sweeney/lamp-controller/internal/logic"
	"github.com/sweeney/lamp-controller/internal/store"
)

// Reconciler keeps the lamp output, the persisted flags and the notification
// sink in agreement.
type Reconciler struct {
	out   gpio.Output
	in    gpio.Input
	store store.Store
	sink  Sink

	observer Observer

	lamp   atomic.Bool
	sensor atomic.Bool

	// transition serializes port writes, persistence and notification.
	transition sync.Mutex

	// dirty holds flags whose last write failed, keyed to the source of the
	// change. Guarded by transition; unsaved mirrors len(dirty) > 0.
	dirty   map[store.Key]Source
	unsaved atomic.Bool

	// saved is the last snapshot known to be durable.
	saved atomic.Pointer[Snapshot]

	poll      time.Duration
	debouncer *logic.Debouncer
	now       func() time.Time

	ticks    <-chan time.Time
	tickDone chan<- bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New restores both flags from st, drives the output to the restored lamp
// level and starts the sensor monitor. Missing or corrupt records restore as
// false. The monitor runs until ctx is cancelled or Stop is called.
func New(ctx context.Context, out gpio.Output, in gpio.Input, st store.Store, sink Sink, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		out:       out,
		in:        in,
		store:     st,
		sink:      sink,
		observer:  nopObserver{},
		dirty:     make(map[store.Key]Source),
		poll:      DefaultPollInterval,
		debouncer: logic.NewDebouncer(0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx = logger.WithKV(ctx, "component", "lamp")

	lampOn := r.restore(ctx, store.KeyLampState)
	sensorOn := r.restore(ctx, store.KeySensorState)

	if err := r.out.SetLevel(lampOn); err != nil {
		r.observer.Failure(FailureHardware)
		return nil, fmt.Errorf("%w: drive restored level %t: %w", ErrHardware, lampOn, err)
	}
	r.lamp.Store(lampOn)
	r.sensor.Store(sensorOn)

	snap := r.Snapshot()
	r.saved.Store(&snap)
	logger.InfoKV(ctx, "state restored", "lamp_state", snap.LampState, "sensor_state", snap.SensorMode, "mode", snap.Mode())
	r.observer.Transition(SourceRestore, snap)

	mctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.monitor(mctx)

	return r, nil
}

func (r *Reconciler) restore(ctx context.Context, key store.Key) bool {
	v, err := r.store.GetFlag(ctx, key)
	switch {
	case err == nil:
		return v
	case errors.Is(err, store.ErrNotFound):
		logger.InfoKV(ctx, "no stored flag, using default", "key", key)
	default:
		logger.WarnKV(ctx, "stored flag unreadable, using default", "key", key, "error", err)
	}
	return false
}

// SetLamp drives the lamp to desired. It is rejected with
// ErrBlockedByAutomaticMode while sensor mode is on.
func (r *Reconciler) SetLamp(ctx context.Context, desired bool) error {
	r.transition.Lock()
	defer r.transition.Unlock()

	if r.sensor.Load() {
		r.observer.Rejected()
		logger.WarnKV(ctx, "manual lamp command rejected", "desired", desired, "reason", "sensor mode")
		return ErrBlockedByAutomaticMode
	}

	return r.applyLamp(ctx, SourceManual, desired)
}

// SetSensorMode enables or disables automatic control. No port write happens
// here; the monitor brings the lamp in line on its next tick.
func (r *Reconciler) SetSensorMode(ctx context.Context, desired bool) error {
	r.transition.Lock()
	defer r.transition.Unlock()

	r.sensor.Store(desired)
	if err := r.store.SetFlag(ctx, store.KeySensorState, desired); err != nil {
		r.observer.Failure(FailurePersistence)
		r.markDirty(store.KeySensorState, SourceMode)
		logger.ErrorKV(ctx, "persist sensor mode failed", "desired", desired, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	r.markClean(store.KeySensorState)

	r.publish(ctx, SourceMode, Snapshot{LampState: r.lamp.Load(), SensorMode: desired})
	return nil
}

// applyLamp performs port, flag, persist, notify. Caller holds r.transition.
func (r *Reconciler) applyLamp(ctx context.Context, src Source, level bool) error {
	if err := r.out.SetLevel(level); err != nil {
		r.observer.Failure(FailureHardware)
		logger.ErrorKV(ctx, "lamp output write failed", "source", src, "level", level, "error", err)
		return fmt.Errorf("%w: %w", ErrHardware, err)
	}

	r.lamp.Store(level)
	if err := r.store.SetFlag(ctx, store.KeyLampState, level); err != nil {
		r.observer.Failure(FailurePersistence)
		r.markDirty(store.KeyLampState, src)
		logger.ErrorKV(ctx, "persist lamp state failed", "source", src, "level", level, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	r.markClean(store.KeyLampState)

	r.publish(ctx, src, Snapshot{LampState: level, SensorMode: r.sensor.Load()})
	return nil
}

// markDirty and markClean track flags awaiting a successful write.
// Caller holds r.transition.
func (r *Reconciler) markDirty(key store.Key, src Source) {
	r.dirty[key] = src
	r.unsaved.Store(true)
}

func (r *Reconciler) markClean(key store.Key) {
	delete(r.dirty, key)
	r.unsaved.Store(len(r.dirty) > 0)
}

// flush rewrites flags whose earlier write failed and, once every one of
// them is durable, announces the current state. It reports whether the
// state was announced. Caller holds r.transition.
func (r *Reconciler) flush(ctx context.Context) bool {
	if len(r.dirty) == 0 {
		return false
	}

	snap := r.Snapshot()
	values := map[store.Key]bool{
		store.KeyLampState:   snap.LampState,
		store.KeySensorState: snap.SensorMode,
	}

	var src Source
	for key, s := range r.dirty {
		if err := r.store.SetFlag(ctx, key, values[key]); err != nil {
			r.observer.Failure(FailurePersistence)
			logger.WarnKV(ctx, "flag still not persisted", "key", key, "error", err)
			return false
		}
		src = s
		r.markClean(key)
	}

	r.publish(ctx, src, snap)
	return true
}

// publish notifies the sink and observers of a persisted change.
// Sink errors are logged and counted, never returned.
func (r *Reconciler) publish(ctx context.Context, src Source, snap Snapshot) {
	r.saved.Store(&snap)
	logger.InfoKV(ctx, "state changed", "source", src,
		"lamp_state", snap.LampState, "sensor_state", snap.SensorMode)

	if err := r.notify(snap); err != nil {
		r.observer.Failure(FailureNotification)
		logger.WarnKV(ctx, "state notification failed", "source", src, "error", err)
	}
	r.observer.Transition(src, snap)
}

func (r *Reconciler) notify(snap Snapshot) error {
	if r.sink == nil {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %w", ErrNotification, err)
	}
	if err := r.sink.Publish(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}
	return nil
}

// Snapshot returns the current flags without blocking.
func (r *Reconciler) Snapshot() Snapshot {
	return Snapshot{LampState: r.lamp.Load(), SensorMode: r.sensor.Load()}
}

// Saved returns the last state that was both persisted and announced.
// It lags Snapshot while a failed write awaits its retry.
func (r *Reconciler) Saved() Snapshot {
	return *r.saved.Load()
}

// Mode returns the current logical channel state.
func (r *Reconciler) Mode() Mode {
	return r.Snapshot().Mode()
}

// Stop cancels the monitor and waits for it to exit. Safe to call more than once.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
	})
}
