// Package env is the process-wide key→string configuration store:
// skynet_env.c's Lua global table, replaced with a plain map since the
// embedded scripting environment itself is out of scope (spec.md §1).
package env

import (
	"fmt"
	"sync"
)

// Store is a mutex-protected key→string map.
type Store struct {
	mu     sync.Mutex
	values map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the value for key and whether it was set.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key, overwriting any prior value. This is the
// SETENV command's semantics: a deliberate, post-boot overwrite is allowed.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// SetInitial stores value under key, but returns an error if key is
// already set. Used by config loading to reproduce skynet_main.c's
// _init_env assert (spec.md SPEC_FULL.md Open Question #1): a duplicate
// key in the same config file is a fatal configuration error, not a
// silent overwrite.
func (s *Store) SetInitial(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		return fmt.Errorf("env: duplicate configuration key %q", key)
	}
	s.values[key] = value
	return nil
}
