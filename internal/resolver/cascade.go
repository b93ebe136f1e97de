package resolver

import (
	"errors"

	"github.com/codex-k8s/localaictl/internal/catalog"
)

// Change is the outcome of a single toggle.
type Change struct {
	// Service is the toggled service.
	Service string
	// Enabled is the requested state.
	Enabled bool
	// AutoEnabled lists dependencies enabled by the cascade in discovery order.
	AutoEnabled []string
	// AutoDisabled lists dependents disabled by the cascade in discovery order.
	AutoDisabled []string
	// Released lists auto-enabled dependencies disabled because no enabled
	// service needs them anymore.
	Released []string
	// Set is the enabled set after the change.
	Set Set
	// Auto is the subset of Set enabled only as a dependency.
	Auto Set
}

// Affected returns the toggled service followed by every cascaded service.
func (c Change) Affected() []string {
	out := []string{c.Service}
	out = append(out, c.AutoEnabled...)
	out = append(out, c.AutoDisabled...)
	return append(out, c.Released...)
}

// Enable enables id and every transitive dependency not yet enabled. The
// dependencies it switches on are recorded in the returned Auto set; id itself
// becomes an explicit choice even if it was auto-enabled before.
// The input sets are not modified.
func Enable(cat *catalog.Catalog, set, auto Set, id string) (Change, error) {
	if !cat.Has(id) {
		return Change{}, &RejectedError{Subject: id, Reason: ReasonUnknownService}
	}
	next := set.Clone()
	nextAuto := auto.Within(next)
	change := Change{Service: id, Enabled: true}
	for _, dep := range dependencyClosure(cat, id) {
		if next[dep] {
			continue
		}
		next[dep] = true
		if !isRequired(cat, dep) {
			nextAuto[dep] = true
		}
		change.AutoEnabled = append(change.AutoEnabled, dep)
	}
	next[id] = true
	delete(nextAuto, id)
	change.Set = next
	change.Auto = nextAuto
	return change, nil
}

// Disable disables id and every enabled service that transitively depends on it,
// then releases auto-enabled dependencies of the removed services that nothing
// enabled depends on anymore. Required services are never disabled; if the
// cascade would reach one the whole operation is rejected and nothing changes.
func Disable(cat *catalog.Catalog, set, auto Set, id string) (Change, error) {
	def, err := cat.Get(id)
	if err != nil {
		return Change{}, &RejectedError{Subject: id, Reason: ReasonUnknownService}
	}
	if def.Required {
		return Change{}, &RejectedError{Subject: id, Reason: ReasonRequired}
	}

	dependents := enabledDependents(cat, set, id)
	var blocking []string
	for _, dependent := range dependents {
		if isRequired(cat, dependent) {
			blocking = append(blocking, dependent)
		}
	}
	if len(blocking) > 0 {
		return Change{}, &RejectedError{Subject: id, Reason: ReasonRequiredDependent, Affected: blocking}
	}

	next := set.Clone()
	nextAuto := auto.Within(next)
	removed := append([]string{id}, dependents...)
	for _, r := range removed {
		delete(next, r)
		delete(nextAuto, r)
	}
	released := releaseUnneeded(cat, next, nextAuto, removed)
	return Change{
		Service:      id,
		Enabled:      false,
		AutoDisabled: dependents,
		Released:     released,
		Set:          next,
		Auto:         nextAuto,
	}, nil
}

// releaseUnneeded disables auto-enabled dependencies of removed that no
// enabled service depends on, repeating until nothing more can be released.
// set and auto are modified in place.
func releaseUnneeded(cat *catalog.Catalog, set, auto Set, removed []string) []string {
	var candidates []string
	seen := make(map[string]bool)
	for _, r := range removed {
		for _, dep := range dependencyClosure(cat, r) {
			if !seen[dep] {
				seen[dep] = true
				candidates = append(candidates, dep)
			}
		}
	}

	var released []string
	for changed := true; changed; {
		changed = false
		for _, c := range candidates {
			if !set.Has(c) || !auto.Has(c) || isRequired(cat, c) || hasEnabledDependent(cat, set, c) {
				continue
			}
			delete(set, c)
			delete(auto, c)
			released = append(released, c)
			changed = true
		}
	}
	return released
}

func hasEnabledDependent(cat *catalog.Catalog, set Set, id string) bool {
	for _, dependent := range cat.Dependents(id) {
		if set.Has(dependent) {
			return true
		}
	}
	return false
}

// Toggle enables or disables id.
func Toggle(cat *catalog.Catalog, set, auto Set, id string, enabled bool) (Change, error) {
	if enabled {
		return Enable(cat, set, auto, id)
	}
	return Disable(cat, set, auto, id)
}

// BulkChange is the outcome of toggling every service of a category.
type BulkChange struct {
	// Category is the toggled category, empty for all services.
	Category catalog.Category
	// Enabled is the requested state.
	Enabled bool
	// Changes holds the applied single toggles in catalog order.
	Changes []Change
	// Rejected holds toggles that were skipped, typically required services on disable.
	Rejected []*RejectedError
	// Set is the enabled set after all toggles.
	Set Set
	// Auto is the subset of Set enabled only as a dependency.
	Auto Set
}

// BulkToggle applies Toggle to every service in category, or to every service
// when category is empty. Rejected single toggles are collected, not fatal.
// On enable every service of the category ends up as an explicit choice.
func BulkToggle(cat *catalog.Catalog, set, auto Set, category catalog.Category, enabled bool) (BulkChange, error) {
	var defs []catalog.ServiceDefinition
	if category == "" {
		defs = cat.All()
	} else {
		if !category.Valid() {
			return BulkChange{}, &RejectedError{Subject: string(category), Reason: ReasonUnknownCategory}
		}
		defs = cat.InCategory(category)
	}

	bulk := BulkChange{Category: category, Enabled: enabled, Set: set.Clone()}
	bulk.Auto = auto.Within(bulk.Set)
	for _, def := range defs {
		if bulk.Set.Has(def.ID) == enabled {
			continue
		}
		change, err := Toggle(cat, bulk.Set, bulk.Auto, def.ID, enabled)
		if err != nil {
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				bulk.Rejected = append(bulk.Rejected, rejected)
				continue
			}
			return BulkChange{}, err
		}
		bulk.Changes = append(bulk.Changes, change)
		bulk.Set = change.Set
		bulk.Auto = change.Auto
	}
	if enabled {
		for _, def := range defs {
			delete(bulk.Auto, def.ID)
		}
	}
	return bulk, nil
}

// dependencyClosure returns every transitive dependency of id in depth-first
// discovery order. The visited set guards against cycles even though the
// catalog rejects them at load time.
func dependencyClosure(cat *catalog.Catalog, id string) []string {
	visited := map[string]bool{id: true}
	var out []string
	var visit func(string)
	visit = func(cur string) {
		for _, dep := range cat.Dependencies(cur) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			visit(dep)
		}
	}
	visit(id)
	return out
}

// enabledDependents walks reverse edges breadth-first, restricted to enabled services.
func enabledDependents(cat *catalog.Catalog, set Set, id string) []string {
	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dependent := range cat.Dependents(cur) {
			if visited[dependent] || !set.Has(dependent) {
				continue
			}
			visited[dependent] = true
			out = append(out, dependent)
			queue = append(queue, dependent)
		}
	}
	return out
}

func isRequired(cat *catalog.Catalog, id string) bool {
	def, err := cat.Get(id)
	return err == nil && def.Required
}
