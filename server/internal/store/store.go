package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// KV is the persistence port the meter and streak packages write through.
// Values are JSON-encoded by the implementation; callers pass Go values.
//
// SetMany applies all entries or none of them.
type KV interface {
	Get(key string, dst any) (bool, error)
	Set(key string, v any) error
	SetMany(entries map[string]any) error
	Sync() error
}

// PersistenceError wraps any failure of the underlying storage.
type PersistenceError struct {
	Op  string // "get" | "set" | "sync"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Entry is an encoded value together with the time it was last written.
type Entry struct {
	Value     []byte
	UpdatedAt time.Time
}

// Memory is a thread-safe in-memory KV. It backs tests and the
// `storage.backend: memory` mode, where nothing survives a restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string]*Entry
	now  func() time.Time // injectable for deterministic tests
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]*Entry),
		now:  time.Now,
	}
}

// Get decodes the value stored under key into dst. It reports false when
// the key is absent.
func (m *Memory) Get(key string, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.Value, dst); err != nil {
		return true, &PersistenceError{Op: "get", Key: key, Err: err}
	}
	return true, nil
}

// Set stores or replaces the value for key.
func (m *Memory) Set(key string, v any) error {
	return m.SetMany(map[string]any{key: v})
}

// SetMany encodes every entry first and only then swaps them in under one
// lock, so readers never see a partial batch.
func (m *Memory) SetMany(entries map[string]any) error {
	encoded, err := encodeAll(entries)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, b := range encoded {
		m.data[k] = &Entry{Value: b, UpdatedAt: now}
	}
	return nil
}

// Sync is a no-op for the memory store.
func (m *Memory) Sync() error { return nil }

// Keys returns all stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Entry returns the raw entry for key, if any.
func (m *Memory) Entry(key string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	return e, ok
}

func encodeAll(entries map[string]any) (map[string][]byte, error) {
	out := make(map[string][]byte, len(entries))
	for k, v := range entries {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, &PersistenceError{Op: "set", Key: k, Err: err}
		}
		out[k] = b
	}
	return out, nil
}
