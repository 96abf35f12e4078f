package lamp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/lamp-controller/internal/gpio"
	"github.com/sweeney/lamp-controller/internal/store"
)

type recordingSink struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (s *recordingSink) Publish(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, append([]byte(nil), p...))
	return nil
}

func (s *recordingSink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink) snapshots(t *testing.T) []Snapshot {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Snapshot, 0, len(s.payloads))
	for _, p := range s.payloads {
		var snap Snapshot
		require.NoError(t, json.Unmarshal(p, &snap))
		out = append(out, snap)
	}
	return out
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []Source
	rejected    int
	failures    []FailureKind
}

func (o *recordingObserver) Transition(src Source, _ Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, src)
}

func (o *recordingObserver) Rejected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

func (o *recordingObserver) Failure(kind FailureKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, kind)
}

func (o *recordingObserver) counts() (transitions []Source, rejected int, failures []FailureKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Source(nil), o.transitions...), o.rejected, append([]FailureKind(nil), o.failures...)
}

type harness struct {
	r     *Reconciler
	out   *gpio.FakeOutput
	in    *gpio.FakeInput
	store *store.MemoryStore
	sink  *recordingSink
	obs   *recordingObserver

	ticks chan time.Time
	done  chan bool
}

// newHarness builds a Reconciler whose monitor only ticks on step().
func newHarness(t *testing.T, st *store.MemoryStore, opts ...Option) *harness {
	t.Helper()

	if st == nil {
		st = store.NewMemoryStore()
	}
	h := &harness{
		out:   gpio.NewFakeOutput(),
		in:    gpio.NewFakeInput(false),
		store: st,
		sink:  &recordingSink{},
		obs:   &recordingObserver{},
		ticks: make(chan time.Time),
		done:  make(chan bool),
	}

	opts = append([]Option{WithObserver(h.obs), withTicks(h.ticks, h.done)}, opts...)
	r, err := New(context.Background(), h.out, h.in, h.store, h.sink, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	h.r = r
	return h
}

// step runs one monitor tick and reports whether it changed the lamp.
func (h *harness) step() bool {
	h.ticks <- time.Time{}
	return <-h.done
}

func seeded(t *testing.T, lampOn, sensorOn bool) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.SetFlag(ctx, store.KeyLampState, lampOn))
	require.NoError(t, st.SetFlag(ctx, store.KeySensorState, sensorOn))
	st.Writes = nil
	return st
}
