package lamp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/lamp-controller/internal/gpio"
	"github.com/sweeney/lamp-controller/internal/store"
)

func TestMonitorTracksSensor(t *testing.T) {
	h := newHarness(t, seeded(t, false, true))

	assert.False(t, h.step(), "input low matches lamp")

	h.in.Set(true)
	require.True(t, h.step())

	assert.True(t, h.r.Snapshot().LampState)
	level, _ := h.out.Level()
	assert.True(t, level)
	stored, _ := h.store.Value(store.KeyLampState)
	assert.True(t, stored)
	assert.Equal(t, []Snapshot{{LampState: true, SensorMode: true}}, h.sink.snapshots(t))

	assert.False(t, h.step(), "steady level is not re-applied")

	h.in.Set(false)
	require.True(t, h.step())
	assert.Equal(t, []Snapshot{
		{LampState: true, SensorMode: true},
		{LampState: false, SensorMode: true},
	}, h.sink.snapshots(t))

	transitions, _, _ := h.obs.counts()
	assert.Equal(t, []Source{SourceRestore, SourceAutomatic, SourceAutomatic}, transitions)
}

func TestMonitorIgnoresSensorInManualMode(t *testing.T) {
	h := newHarness(t, nil)
	h.in.Set(true)

	assert.False(t, h.step())
	assert.False(t, h.step())

	assert.Zero(t, h.in.ReadCount(), "input not sampled outside sensor mode")
	assert.False(t, h.r.Snapshot().LampState)
}

func TestMonitorAppliesAfterEnteringSensorMode(t *testing.T) {
	h := newHarness(t, nil)
	h.in.Set(true)

	require.NoError(t, h.r.SetSensorMode(context.Background(), true))
	assert.Equal(t, []bool{false}, h.out.Writes(), "mode switch itself writes nothing")

	require.True(t, h.step())
	assert.Equal(t, []bool{false, true}, h.out.Writes())
	assert.Equal(t, ModeAutoTracking, h.r.Mode())
}

func TestMonitorReadErrorSkipsTick(t *testing.T) {
	h := newHarness(t, seeded(t, false, true))
	h.in.Set(true)
	h.in.Fail(errors.New("chip removed"))

	assert.False(t, h.step())
	assert.False(t, h.r.Snapshot().LampState)

	_, _, failures := h.obs.counts()
	assert.Equal(t, []FailureKind{FailureSensor}, failures)

	h.in.Fail(nil)
	assert.True(t, h.step(), "recovers on the next tick")
}

func TestMonitorHardwareFailureRetriesNextTick(t *testing.T) {
	h := newHarness(t, seeded(t, false, true))
	h.in.Set(true)
	h.out.Fail(errors.New("relay fault"))

	assert.False(t, h.step())
	assert.False(t, h.r.Snapshot().LampState)
	assert.Empty(t, h.sink.snapshots(t))

	h.out.Fail(nil)
	assert.True(t, h.step())
	assert.True(t, h.r.Snapshot().LampState)
}

func TestMonitorPersistenceFailureRetriedOnNextTick(t *testing.T) {
	h := newHarness(t, seeded(t, false, true))
	h.in.Set(true)
	h.store.Fail(errors.New("disk full"), 1)

	assert.False(t, h.step())
	assert.True(t, h.r.Snapshot().LampState, "port and flag follow the sensor")
	assert.Empty(t, h.sink.snapshots(t))
	assert.Equal(t, Snapshot{LampState: false, SensorMode: true}, h.r.Saved())

	assert.True(t, h.step(), "pending write flushed")
	assert.False(t, h.step(), "nothing left to do")

	stored, ok := h.store.Value(store.KeyLampState)
	require.True(t, ok)
	assert.True(t, stored)
	assert.Equal(t, []Snapshot{{LampState: true, SensorMode: true}}, h.sink.snapshots(t))
	assert.Equal(t, Snapshot{LampState: true, SensorMode: true}, h.r.Saved())
	assert.Equal(t, []bool{false, true}, h.out.Writes(), "flush does not touch the port")

	transitions, _, failures := h.obs.counts()
	assert.Equal(t, []Source{SourceRestore, SourceAutomatic}, transitions)
	assert.Equal(t, []FailureKind{FailurePersistence}, failures)
}

func TestMonitorRetriesManualWriteFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Fail(errors.New("database is locked"), 0)

	require.ErrorIs(t, h.r.SetLamp(context.Background(), true), ErrPersistence)
	require.ErrorIs(t, h.r.SetSensorMode(context.Background(), false), ErrPersistence)

	assert.False(t, h.step(), "store still failing")
	assert.Empty(t, h.sink.snapshots(t))

	h.store.Fail(nil, 0)
	assert.True(t, h.step())

	lampOn, _ := h.store.Value(store.KeyLampState)
	assert.True(t, lampOn)
	sensorOn, ok := h.store.Value(store.KeySensorState)
	require.True(t, ok, "sensor mode written too")
	assert.False(t, sensorOn)
	assert.Equal(t, []Snapshot{{LampState: true, SensorMode: false}}, h.sink.snapshots(t))

	_, _, failures := h.obs.counts()
	assert.Equal(t, []FailureKind{FailurePersistence, FailurePersistence, FailurePersistence}, failures)
}

func TestLaterWriteClearsPendingFlag(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Fail(errors.New("busy"), 1)

	require.ErrorIs(t, h.r.SetLamp(context.Background(), true), ErrPersistence)
	require.NoError(t, h.r.SetLamp(context.Background(), false))

	assert.False(t, h.step(), "nothing pending after a successful write")
	assert.Equal(t, []Snapshot{{LampState: false, SensorMode: false}}, h.sink.snapshots(t))
}

func TestMonitorDebounce(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Unix(0, 0)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	h := newHarness(t, seeded(t, false, true), WithDebounce(300*time.Millisecond), WithClock(clock))

	// Baseline low.
	assert.False(t, h.step())
	advance(300 * time.Millisecond)
	assert.False(t, h.step())

	// A short pulse is rejected.
	h.in.Set(true)
	advance(100 * time.Millisecond)
	assert.False(t, h.step())
	h.in.Set(false)
	advance(100 * time.Millisecond)
	assert.False(t, h.step())
	assert.False(t, h.r.Snapshot().LampState)

	// A held level is applied once the window elapses.
	h.in.Set(true)
	advance(100 * time.Millisecond)
	assert.False(t, h.step())
	advance(200 * time.Millisecond)
	assert.False(t, h.step())
	advance(100 * time.Millisecond)
	assert.True(t, h.step())
	assert.True(t, h.r.Snapshot().LampState)
}

func TestMonitorRealTicker(t *testing.T) {
	out := gpio.NewFakeOutput()
	in := gpio.NewFakeInput(false)
	st := seeded(t, false, true)
	sink := &recordingSink{}

	r, err := New(context.Background(), out, in, st, sink, WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	defer r.Stop()

	in.Set(true)
	require.Eventually(t, func() bool {
		return r.Snapshot().LampState
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		v, _ := st.Value(store.KeyLampState)
		return v
	}, time.Second, 5*time.Millisecond)
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := gpio.NewFakeInput(false)

	r, err := New(ctx, gpio.NewFakeOutput(), in, seeded(t, false, true), &recordingSink{},
		WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return in.ReadCount() > 0 }, time.Second, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not exit after cancel")
	}
}

func TestConcurrentCommandsStayConsistent(t *testing.T) {
	out := gpio.NewFakeOutput()
	in := gpio.NewFakeInput(true, false, true, true, false)
	st := store.NewMemoryStore()

	r, err := New(context.Background(), out, in, st, &recordingSink{}, WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				if i == 0 {
					_ = r.SetSensorMode(ctx, j%3 == 0)
					continue
				}
				err := r.SetLamp(ctx, (i+j)%2 == 0)
				if err != nil {
					assert.ErrorIs(t, err, ErrBlockedByAutomaticMode)
				}
			}
		}(i)
	}
	wg.Wait()
	r.Stop()

	snap := r.Snapshot()
	level, ok := out.Level()
	require.True(t, ok)
	assert.Equal(t, snap.LampState, level, "port matches flag")

	if stored, ok := st.Value(store.KeyLampState); ok {
		assert.Equal(t, snap.LampState, stored, "store matches flag")
	}
	stored, ok := st.Value(store.KeySensorState)
	require.True(t, ok)
	assert.Equal(t, snap.SensorMode, stored)
}
