package prefs

import (
	"context"
	"sync"
)

const memoryBackend = "memory"

// MemoryStore keeps preferences in process memory.
// LoadErr and SaveErr, when set, are returned wrapped in a StoreError.
type MemoryStore struct {
	mu      sync.Mutex
	state   State
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryStore constructs a MemoryStore seeded with state.
func NewMemoryStore(state State) *MemoryStore {
	return &MemoryStore{state: state.Clone()}
}

// Load returns a copy of the held state.
func (s *MemoryStore) Load(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return State{}, &StoreError{Op: "load", Backend: memoryBackend, Err: s.LoadErr}
	}
	if err := ctx.Err(); err != nil {
		return State{}, &StoreError{Op: "load", Backend: memoryBackend, Err: err}
	}
	return s.state.Clone(), nil
}

// Save replaces the held state.
func (s *MemoryStore) Save(ctx context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return &StoreError{Op: "save", Backend: memoryBackend, Err: s.SaveErr}
	}
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "save", Backend: memoryBackend, Err: err}
	}
	s.state = state.Clone()
	s.saves++
	return nil
}

// Snapshot returns the held state without going through Load.
func (s *MemoryStore) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
