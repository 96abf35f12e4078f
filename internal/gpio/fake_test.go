package gpio

import (
	"errors"
	"testing"
)

func TestFakeInputReadLevel(t *testing.T) {
	f := NewFakeInput(true, false, true)

	want := []bool{true, false, true, true} // last sample repeats
	for i, w := range want {
		got, err := f.ReadLevel()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, got)
		}
	}

	if f.ReadCount() != len(want) {
		t.Errorf("expected %d reads, got %d", len(want), f.ReadCount())
	}
}

func TestFakeInputNoSamples(t *testing.T) {
	f := NewFakeInput()

	_, err := f.ReadLevel()
	if err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeInputError(t *testing.T) {
	f := NewFakeInput(true)
	f.Fail(errors.New("simulated error"))

	_, err := f.ReadLevel()
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}

	f.Fail(nil)
	if _, err := f.ReadLevel(); err != nil {
		t.Errorf("unexpected error after clearing: %v", err)
	}
}

func TestFakeInputSetAndReset(t *testing.T) {
	f := NewFakeInput(false, false)

	f.Set(true)
	got, _ := f.ReadLevel()
	if !got {
		t.Error("expected true after Set(true)")
	}

	f.Samples = []bool{false, true}
	f.Reset()
	got, _ = f.ReadLevel()
	if got {
		t.Error("after reset: expected first sample false")
	}
}

func TestFakeInputClose(t *testing.T) {
	f := NewFakeInput(true)

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeOutputRecords(t *testing.T) {
	f := NewFakeOutput()

	if _, ok := f.Level(); ok {
		t.Error("expected no level before any write")
	}

	for _, l := range []bool{true, true, false} {
		if err := f.SetLevel(l); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	writes := f.Writes()
	if len(writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(writes))
	}
	if level, _ := f.Level(); level {
		t.Error("expected last level false")
	}
}

func TestFakeOutputError(t *testing.T) {
	f := NewFakeOutput()
	f.Fail(errors.New("relay stuck"))

	if err := f.SetLevel(true); err == nil {
		t.Error("expected error")
	}
	if len(f.Writes()) != 0 {
		t.Error("failed write must not be recorded")
	}
}

func TestFakeOutputClose(t *testing.T) {
	f := NewFakeOutput()
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
