package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// New validates the given definitions and returns an immutable Catalog.
// Every failure is collected into a single *ValidationError.
func New(defs []ServiceDefinition, profiles []Profile, environments []Environment) (*Catalog, error) {
	var problems []Problem
	add := func(subject, format string, args ...any) {
		problems = append(problems, Problem{Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	profileNames := make(map[string]struct{}, len(profiles))
	defaults := 0
	for _, p := range profiles {
		switch {
		case strings.TrimSpace(p.Name) == "":
			add("profiles", "profile with empty name")
		case hasKey(profileNames, p.Name):
			add(p.Name, "duplicate profile")
		}
		profileNames[p.Name] = struct{}{}
		if p.Default {
			defaults++
		}
	}
	if defaults != 1 {
		add("profiles", "exactly one default profile required, found %d", defaults)
	}

	envNames := make(map[string]struct{}, len(environments))
	defaults = 0
	for _, e := range environments {
		switch {
		case strings.TrimSpace(e.Name) == "":
			add("environments", "environment with empty name")
		case hasKey(envNames, e.Name):
			add(e.Name, "duplicate environment")
		}
		envNames[e.Name] = struct{}{}
		if e.Default {
			defaults++
		}
	}
	if defaults != 1 {
		add("environments", "exactly one default environment required, found %d", defaults)
	}

	services := make(map[string]ServiceDefinition, len(defs))
	canonical := make(map[string]string, len(defs))
	for _, def := range defs {
		id := def.ID
		if strings.TrimSpace(id) == "" {
			add("services", "service with empty id")
			continue
		}
		if _, dup := services[id]; dup {
			add(id, "duplicate service id")
			continue
		}
		key := NormalizeID(id)
		if other, ok := canonical[key]; ok {
			add(id, "conflicts with %q: both spell the same service", other)
			continue
		}
		if !def.Category.Valid() {
			add(id, "unknown category %q", def.Category)
		}
		for profile, variant := range def.ProfileVariants {
			if !hasKey(profileNames, profile) {
				add(id, "profile variant for unknown profile %q", profile)
			}
			if strings.TrimSpace(variant) == "" {
				add(id, "empty profile variant for %q", profile)
			}
		}
		for profile, variant := range def.PullVariants {
			if !hasKey(profileNames, profile) {
				add(id, "pull variant for unknown profile %q", profile)
			}
			if strings.TrimSpace(variant) == "" {
				add(id, "empty pull variant for %q", profile)
			}
		}
		if def.External != nil && strings.TrimSpace(def.External.ComposeFile) == "" {
			add(id, "external deployment without compose file")
		}
		canonical[key] = id
		services[id] = def.clone()
	}

	ids := make([]string, 0, len(services))
	for id := range services {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dependents := make(map[string][]string)
	graphOK := true
	for _, id := range ids {
		def := services[id]
		seen := make(map[string]struct{}, len(def.Dependencies))
		deps := make([]string, 0, len(def.Dependencies))
		for _, dep := range def.Dependencies {
			if hasKey(seen, dep) {
				add(id, "dependency %q listed twice", dep)
				continue
			}
			seen[dep] = struct{}{}
			switch {
			case dep == id:
				add(id, "depends on itself")
				graphOK = false
				continue
			case !hasService(services, dep):
				if known, ok := canonical[NormalizeID(dep)]; ok {
					add(id, "dependency %q is a non-canonical spelling of %q", dep, known)
				} else {
					add(id, "unknown dependency %q", dep)
				}
				graphOK = false
				continue
			}
			deps = append(deps, dep)
			dependents[dep] = append(dependents[dep], id)
		}
		sort.Strings(deps)
		def.Dependencies = deps
		services[id] = def
	}

	if graphOK {
		if cycle := findCycle(ids, services); cycle != nil {
			add(cycle[0], "dependency cycle %s", strings.Join(cycle, " -> "))
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	for id := range dependents {
		sort.Strings(dependents[id])
	}
	sortByCategory(ids, services)

	return &Catalog{
		services:     services,
		order:        ids,
		dependents:   dependents,
		profiles:     append([]Profile(nil), profiles...),
		environments: append([]Environment(nil), environments...),
	}, nil
}

// NormalizeID folds case and separators so that alternative spellings of one id compare equal.
func NormalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.NewReplacer("_", "-", " ", "-", ".", "-").Replace(id)
}

// findCycle returns the first dependency cycle found, as a path that starts and ends on the same id.
func findCycle(ids []string, services map[string]ServiceDefinition) []string {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(ids))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = inProgress
		stack = append(stack, id)
		for _, dep := range services[id].Dependencies {
			switch state[dep] {
			case inProgress:
				for i, s := range stack {
					if s == dep {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, dep)
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range ids {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func hasKey(m map[string]struct{}, key string) bool {
	_, ok := m[key]
	return ok
}

func hasService(m map[string]ServiceDefinition, id string) bool {
	_, ok := m[id]
	return ok
}
