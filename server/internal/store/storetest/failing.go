// Package storetest provides KV doubles for tests in other packages.
package storetest

import (
	"errors"

	"github.com/interruptmeter/interruptmeter/server/internal/store"
)

// ErrInjected is the cause wrapped by every injected failure.
var ErrInjected = errors.New("injected write failure")

// FailingWrites wraps a KV and fails every Set, SetMany and Sync once
// Fail is true. Reads always go to the wrapped store.
type FailingWrites struct {
	store.KV
	Fail bool
}

func (f *FailingWrites) Set(key string, v any) error {
	if f.Fail {
		return &store.PersistenceError{Op: "set", Key: key, Err: ErrInjected}
	}
	return f.KV.Set(key, v)
}

func (f *FailingWrites) SetMany(entries map[string]any) error {
	if f.Fail {
		return &store.PersistenceError{Op: "set", Err: ErrInjected}
	}
	return f.KV.SetMany(entries)
}

func (f *FailingWrites) Sync() error {
	if f.Fail {
		return &store.PersistenceError{Op: "sync", Err: ErrInjected}
	}
	return f.KV.Sync()
}

// WriteBudget wraps a KV and lets only Left more Set or SetMany calls
// through; later ones fail. Sync and reads are never failed.
type WriteBudget struct {
	store.KV
	Left int
}

func (b *WriteBudget) Set(key string, v any) error {
	if b.Left <= 0 {
		return &store.PersistenceError{Op: "set", Key: key, Err: ErrInjected}
	}
	b.Left--
	return b.KV.Set(key, v)
}

func (b *WriteBudget) SetMany(entries map[string]any) error {
	if b.Left <= 0 {
		return &store.PersistenceError{Op: "set", Err: ErrInjected}
	}
	b.Left--
	return b.KV.SetMany(entries)
}
