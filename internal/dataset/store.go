// Package dataset holds the latest raw payload for each named dataset.
// Pure storage: payloads are replaced wholesale, never merged, and every
// replacement bumps a global monotonic version. Indexing lives elsewhere.
package dataset

import (
	"sync"
)

// Store is the versioned payload store. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	version  uint64
	payloads map[string]any
}

// View is one consistent read of the store: the version and every payload as
// of a single moment. Builders work from a View so that no index mixes two
// store versions.
type View struct {
	Version  uint64
	Payloads map[string]any
}

func NewStore() *Store {
	return &Store{payloads: make(map[string]any)}
}

// Put replaces the payload for a dataset name atomically and returns the new
// store version. Later puts always win.
func (s *Store) Put(name string, payload any) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[name] = payload
	s.version++
	return s.version
}

// Get returns the latest payload for a dataset name. A dataset that was never
// put yields an empty sequence, never a failure.
func (s *Store) Get(name string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payloads[name]; ok {
		return p
	}
	return []any{}
}

// Has reports whether a dataset has ever been put.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.payloads[name]
	return ok
}

// Version returns the current store version. Zero means nothing was ever put.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a consistent View of every payload at the current version.
// The payload map is copied; payload values are shared and treated as
// immutable by all readers.
func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payloads := make(map[string]any, len(s.payloads))
	for name, p := range s.payloads {
		payloads[name] = p
	}
	return View{Version: s.version, Payloads: payloads}
}
