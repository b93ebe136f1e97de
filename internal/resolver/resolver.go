// Package resolver merges the catalog with stored preferences, propagates
// enable/disable decisions over the dependency graph and computes the
// effective list of concrete services for a profile. It performs no I/O.
package resolver

import (
	"sort"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/prefs"
)

// Set is a set of enabled logical service ids.
type Set map[string]bool

// NewSet builds a Set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Has reports whether id is enabled.
func (s Set) Has(id string) bool {
	return s[id]
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id, on := range s {
		if on {
			out[id] = true
		}
	}
	return out
}

// Within returns the members of s that are also in outer. A nil s yields an
// empty set.
func (s Set) Within(outer Set) Set {
	out := make(Set)
	for id, on := range s {
		if on && outer.Has(id) {
			out[id] = true
		}
	}
	return out
}

// IDs returns the enabled ids sorted.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id, on := range s {
		if on {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// NoteKind classifies a reconciliation performed during Merge.
type NoteKind string

const (
	// NoteUnknownService marks a stored entry for an id the catalog does not define.
	NoteUnknownService NoteKind = "unknown-service"
	// NoteImpliedDependency marks a dependency enabled because a stored enabled service needs it.
	NoteImpliedDependency NoteKind = "implied-dependency"
	// NoteDefaultProfile marks a stored profile replaced by the default.
	NoteDefaultProfile NoteKind = "default-profile"
	// NoteDefaultEnvironment marks a stored environment replaced by the default.
	NoteDefaultEnvironment NoteKind = "default-environment"
	// NoteStoreUnavailable marks a configuration built from defaults because preferences could not be loaded.
	NoteStoreUnavailable NoteKind = "store-unavailable"
)

// Note describes one reconciliation between stored state and the catalog.
type Note struct {
	Kind    NoteKind `json:"kind"`
	Subject string   `json:"subject"`
}

// ServiceView is a catalog definition annotated with its effective state.
type ServiceView struct {
	catalog.ServiceDefinition
	Enabled bool
	// Auto marks a service enabled only because an enabled service depends on it.
	Auto       bool
	RequiredBy []string
}

// CategoryView groups service views of one category.
type CategoryView struct {
	Category catalog.Category
	Services []ServiceView
}

// Configuration is the authoritative merged view. It is recomputed on every
// read and never persisted as such.
type Configuration struct {
	Categories  []CategoryView
	Profile     string
	Environment string
	Notes       []Note
}

// Merge combines the catalog with stored preferences.
// Services default to disabled, required services are always enabled, stored
// entries for unknown ids are ignored and dependencies of stored enabled
// services are enabled so the result is forward-closed. Stored auto flags are
// kept and dependencies implied here are marked auto. Invalid or missing
// selections fall back to the catalog defaults.
func Merge(cat *catalog.Catalog, state prefs.State) *Configuration {
	var notes []Note

	stored := state.Enabled()
	storedIDs := make([]string, 0, len(stored))
	for id := range stored {
		storedIDs = append(storedIDs, id)
	}
	sort.Strings(storedIDs)

	storedAuto := state.Auto()
	set := make(Set)
	auto := make(Set)
	for _, id := range storedIDs {
		if !cat.Has(id) {
			notes = append(notes, Note{Kind: NoteUnknownService, Subject: id})
			continue
		}
		if stored[id] {
			set[id] = true
			if storedAuto[id] {
				auto[id] = true
			}
		}
	}
	for _, def := range cat.All() {
		if def.Required {
			set[def.ID] = true
			delete(auto, def.ID)
		}
	}

	for _, id := range set.IDs() {
		for _, dep := range dependencyClosure(cat, id) {
			if !set[dep] {
				set[dep] = true
				auto[dep] = true
				notes = append(notes, Note{Kind: NoteImpliedDependency, Subject: dep})
			}
		}
	}

	profile := state.Profile
	if _, ok := cat.Profile(profile); !ok {
		if profile != "" {
			notes = append(notes, Note{Kind: NoteDefaultProfile, Subject: profile})
		}
		profile = cat.DefaultProfile()
	}
	environment := state.Environment
	if _, ok := cat.Environment(environment); !ok {
		if environment != "" {
			notes = append(notes, Note{Kind: NoteDefaultEnvironment, Subject: environment})
		}
		environment = cat.DefaultEnvironment()
	}

	cfg := Build(cat, set, auto, profile, environment)
	cfg.Notes = notes
	return cfg
}

// Build renders the merged view of an enabled set without any reconciliation.
// auto marks which enabled services are on only as dependencies; it may be nil.
func Build(cat *catalog.Catalog, set, auto Set, profile, environment string) *Configuration {
	cfg := &Configuration{Profile: profile, Environment: environment}
	for _, group := range cat.ByCategory() {
		cv := CategoryView{Category: group.Category}
		for _, def := range group.Services {
			view := ServiceView{ServiceDefinition: def, Enabled: set.Has(def.ID)}
			view.Auto = view.Enabled && !def.Required && auto.Has(def.ID)
			for _, dependent := range cat.Dependents(def.ID) {
				if set.Has(dependent) {
					view.RequiredBy = append(view.RequiredBy, dependent)
				}
			}
			cv.Services = append(cv.Services, view)
		}
		cfg.Categories = append(cfg.Categories, cv)
	}
	return cfg
}

// Enabled returns the enabled set of the configuration.
func (c *Configuration) Enabled() Set {
	set := make(Set)
	for _, cv := range c.Categories {
		for _, sv := range cv.Services {
			if sv.Enabled {
				set[sv.ID] = true
			}
		}
	}
	return set
}

// Auto returns the services enabled only as dependencies.
func (c *Configuration) Auto() Set {
	set := make(Set)
	for _, cv := range c.Categories {
		for _, sv := range cv.Services {
			if sv.Auto {
				set[sv.ID] = true
			}
		}
	}
	return set
}

// Service looks up a single view by id.
func (c *Configuration) Service(id string) (ServiceView, bool) {
	for _, cv := range c.Categories {
		for _, sv := range cv.Services {
			if sv.ID == id {
				return sv, true
			}
		}
	}
	return ServiceView{}, false
}

// Entries converts the configuration into preference entries for every catalog service.
func (c *Configuration) Entries() []prefs.Entry {
	var out []prefs.Entry
	for _, cv := range c.Categories {
		for _, sv := range cv.Services {
			out = append(out, prefs.Entry{
				ServiceID: sv.ID,
				Category:  string(cv.Category),
				Enabled:   sv.Enabled,
				Auto:      sv.Auto,
			})
		}
	}
	return out
}

// State converts the configuration into a storable preference state.
func (c *Configuration) State() prefs.State {
	return prefs.State{
		Entries:     c.Entries(),
		Profile:     c.Profile,
		Environment: c.Environment,
	}
}

// ValidateProfile rejects profile names the catalog does not define.
func ValidateProfile(cat *catalog.Catalog, name string) error {
	if _, ok := cat.Profile(name); !ok {
		return &RejectedError{Subject: name, Reason: ReasonUnknownProfile}
	}
	return nil
}

// ValidateEnvironment rejects environment names the catalog does not define.
func ValidateEnvironment(cat *catalog.Catalog, name string) error {
	if _, ok := cat.Environment(name); !ok {
		return &RejectedError{Subject: name, Reason: ReasonUnknownEnvironment}
	}
	return nil
}
