// Package store implements the Measurement Store (spec §4.E): a
// process-wide map keyed by (sensor_name, name, instance?) that returns a
// changed Measurement only on first observation or strict value change.
// Modeled on the teacher's mutex-guarded map idiom
// (pkg/snmpcollector/poller/pool.go), not on any external cache/database —
// this is purely an in-process dedup cache with no eviction and process
// lifetime, which nothing in the example pack backs with an external store.
package store

import (
	"sync"

	"github.com/vpbank/sensorpipe/models"
)

// Store is safe for concurrent use: per-key mutation is serialized, and
// different sensors may upsert concurrently without blocking each other
// beyond the shared map's lock.
type Store struct {
	mu      sync.Mutex
	entries map[models.MeasurementKey]stored
}

type stored struct {
	value float64
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[models.MeasurementKey]stored)}
}

// Upsert records m and returns it (ok=true) if this is the first
// observation of m.Key() or its value differs from the last stored value;
// otherwise returns ok=false and the store is left unchanged. Comparison is
// against Value (the numeric reading); StringValue/Integer/etc. do not
// independently trigger a change per spec invariant 5.
func (s *Store) Upsert(m models.Measurement) (models.Measurement, bool) {
	key := m.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.entries[key]
	if existed && prev.value == m.Value {
		return models.Measurement{}, false
	}
	s.entries[key] = stored{value: m.Value}
	return m, true
}

// Len reports the number of distinct keys currently tracked, for tests and
// monitoring.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
