// Package prefs persists operator intent: which services are enabled plus the
// selected profile and environment. Stores never validate against the catalog;
// reconciliation is the resolver's job so catalog changes need no migration.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Entry is the stored enabled flag of one service.
type Entry struct {
	// ServiceID is the catalog id of the service.
	ServiceID string `json:"serviceId"`
	// Category is used only to group entries on disk.
	Category string `json:"category,omitempty"`
	// Enabled is the operator's choice.
	Enabled bool `json:"enabled"`
	// Auto marks a service enabled only as a dependency of another one.
	Auto bool `json:"auto,omitempty"`
}

// State is the whole persisted preference record.
// The zero value means "no preferences": nothing enabled, default selections.
type State struct {
	Entries     []Entry
	Profile     string
	Environment string
}

// Enabled flattens the entries into an id to enabled map.
// An id that appears more than once is enabled if any entry enables it.
func (s State) Enabled() map[string]bool {
	out := make(map[string]bool, len(s.Entries))
	for _, e := range s.Entries {
		out[e.ServiceID] = out[e.ServiceID] || e.Enabled
	}
	return out
}

// Auto returns the ids of enabled entries flagged as dependencies only.
// An id enabled explicitly by any of its entries is not auto.
func (s State) Auto() map[string]bool {
	explicit := make(map[string]bool)
	out := make(map[string]bool)
	for _, e := range s.Entries {
		if !e.Enabled {
			continue
		}
		if e.Auto {
			out[e.ServiceID] = true
		} else {
			explicit[e.ServiceID] = true
		}
	}
	for id := range explicit {
		delete(out, id)
	}
	return out
}

// IsEmpty reports whether the state carries no information at all.
func (s State) IsEmpty() bool {
	return len(s.Entries) == 0 && s.Profile == "" && s.Environment == ""
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Entries = append([]Entry(nil), s.Entries...)
	return out
}

// sortedEntries returns entries ordered by category, then service id.
func sortedEntries(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out
}

// Store loads and saves the whole preference state.
// Implementations return an empty State and nil error when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// StoreError reports a failed load or save.
type StoreError struct {
	// Op is "load" or "save".
	Op string
	// Backend names the store implementation.
	Backend string
	// Path is the file or directory backing the store, if any.
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "preference store error"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s preferences (%s %q): %v", e.Op, e.Backend, e.Path, e.Err)
	}
	return fmt.Sprintf("%s preferences (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsStoreError reports whether err is a preference store failure.
func IsStoreError(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}
