// Package store provides the key-value persistence port used by the meter
// and streak packages, with an in-memory implementation and a SQLite one.
//
// KV methods:
//   - Get(key, dst)       decode the stored JSON into dst; false if absent
//   - Set(key, v)         store one value
//   - SetMany(entries)    store several values atomically
//   - Sync()              flush to durable storage
//
// Every storage failure is returned as a *PersistenceError naming the
// operation and key.
package store
