package store

import (
	"context"
	"sync"
)

// MemoryStore is a test double that keeps raw records in a map.
type MemoryStore struct {
	mu sync.Mutex

	records map[Key][]byte

	// Writes records every successful SetFlag in order.
	Writes []Write

	// SetError, if set, is returned by SetFlag for every key.
	SetError error

	// FailSets limits SetError to the next n calls, after which it is cleared.
	// Zero means every call fails while SetError is set.
	FailSets int

	// GetError, if set, is returned by GetFlag.
	GetError error
}

// Write is one recorded SetFlag call.
type Write struct {
	Key   Key
	Value bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key][]byte)}
}

// GetFlag returns the decoded record for key.
func (m *MemoryStore) GetFlag(_ context.Context, key Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetError != nil {
		return false, m.GetError
	}

	raw, ok := m.records[key]
	if !ok {
		return false, ErrNotFound
	}

	return decode(raw)
}

// SetFlag stores the record for key unless a failure is scripted.
func (m *MemoryStore) SetFlag(_ context.Context, key Key, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetError != nil {
		err := m.SetError
		if m.FailSets > 0 {
			m.FailSets--
			if m.FailSets == 0 {
				m.SetError = nil
			}
		}
		return err
	}

	m.records[key] = encode(value)
	m.Writes = append(m.Writes, Write{Key: key, Value: value})
	return nil
}

// SetRaw plants an arbitrary record, bypassing encoding.
func (m *MemoryStore) SetRaw(key Key, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = raw
}

// Value returns the decoded record and whether it exists.
func (m *MemoryStore) Value(key Key) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.records[key]
	if !ok {
		return false, false
	}
	v, err := decode(raw)
	return v, err == nil
}

// History returns a copy of the recorded writes.
func (m *MemoryStore) History() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.Writes...)
}

// WriteCount returns the number of successful writes.
func (m *MemoryStore) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Writes)
}

// Fail scripts SetFlag failures under the lock. n == 0 fails every call.
func (m *MemoryStore) Fail(err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetError = err
	m.FailSets = n
}
