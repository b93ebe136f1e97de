// Package catalog contains the immutable registry of services known to the stack.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Category groups services in listings and in the preference file.
type Category string

const (
	// CategoryInfrastructure covers proxies and shared caches.
	CategoryInfrastructure Category = "infrastructure"
	// CategoryAIPlatform covers workflow and chat front-ends.
	CategoryAIPlatform Category = "ai-platform"
	// CategoryLLM covers model runtimes.
	CategoryLLM Category = "llm"
	// CategoryDatabase covers relational, vector, graph and object stores.
	CategoryDatabase Category = "database"
	// CategoryMonitoring covers observability services.
	CategoryMonitoring Category = "monitoring"
	// CategoryUtility covers everything else.
	CategoryUtility Category = "utility"
)

var categoryOrder = []Category{
	CategoryInfrastructure,
	CategoryAIPlatform,
	CategoryLLM,
	CategoryDatabase,
	CategoryMonitoring,
	CategoryUtility,
}

// Categories returns every known category in display order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory converts a textual category into a Category value.
func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", value)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return categoryRank(c) >= 0
}

func categoryRank(c Category) int {
	for i, known := range categoryOrder {
		if known == c {
			return i
		}
	}
	return -1
}

// ExternalDeployment marks a service whose lifecycle is driven by its own compose file.
type ExternalDeployment struct {
	// ComposeFile is the compose file path relative to the project directory.
	ComposeFile string
}

// ServiceDefinition is the static description of one service.
type ServiceDefinition struct {
	// ID is the stable service key.
	ID string
	// Category is the listing group.
	Category Category
	// Description is a short human readable summary.
	Description string
	// Required services are always enabled and cannot be disabled.
	Required bool
	// Dependencies lists the ids this service needs.
	Dependencies []string
	// ProfileVariants maps a profile name to the concrete compose service id.
	ProfileVariants map[string]string
	// PullVariants maps a profile name to an auxiliary one-shot service id.
	PullVariants map[string]string
	// External is set when the service is started from a separate compose file.
	External *ExternalDeployment
}

// DependsOn reports whether id is a direct dependency of d.
func (d ServiceDefinition) DependsOn(id string) bool {
	for _, dep := range d.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

func (d ServiceDefinition) clone() ServiceDefinition {
	out := d
	out.Dependencies = append([]string(nil), d.Dependencies...)
	out.ProfileVariants = cloneMap(d.ProfileVariants)
	out.PullVariants = cloneMap(d.PullVariants)
	if d.External != nil {
		ext := *d.External
		out.External = &ext
	}
	return out
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Profile is a hardware execution profile such as cpu or gpu-nvidia.
type Profile struct {
	Name        string
	Description string
	Default     bool
}

// Environment is a network exposure mode such as private or public.
type Environment struct {
	Name        string
	Description string
	Default     bool
}

// CategoryGroup is one category with its services in id order.
type CategoryGroup struct {
	Category Category
	Services []ServiceDefinition
}

// Catalog is a validated, read-only set of service definitions.
// All accessors return copies; a Catalog is safe for concurrent use.
type Catalog struct {
	services     map[string]ServiceDefinition
	order        []string
	dependents   map[string][]string
	profiles     []Profile
	environments []Environment
}

// All returns every definition ordered by category, then id.
func (c *Catalog) All() []ServiceDefinition {
	out := make([]ServiceDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.services[id].clone())
	}
	return out
}

// IDs returns every service id in catalog order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// ByCategory returns definitions grouped by category in display order.
// Categories without services are omitted.
func (c *Catalog) ByCategory() []CategoryGroup {
	var groups []CategoryGroup
	for _, def := range c.All() {
		if n := len(groups); n > 0 && groups[n-1].Category == def.Category {
			groups[n-1].Services = append(groups[n-1].Services, def)
			continue
		}
		groups = append(groups, CategoryGroup{Category: def.Category, Services: []ServiceDefinition{def}})
	}
	return groups
}

// InCategory returns the definitions of one category in id order.
func (c *Catalog) InCategory(category Category) []ServiceDefinition {
	var out []ServiceDefinition
	for _, id := range c.order {
		if def := c.services[id]; def.Category == category {
			out = append(out, def.clone())
		}
	}
	return out
}

// Get returns the definition for id or an error wrapping ErrNotFound.
func (c *Catalog) Get(id string) (ServiceDefinition, error) {
	def, ok := c.services[id]
	if !ok {
		return ServiceDefinition{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return def.clone(), nil
}

// Has reports whether id is a known service.
func (c *Catalog) Has(id string) bool {
	_, ok := c.services[id]
	return ok
}

// Dependencies returns the direct dependencies of id.
func (c *Catalog) Dependencies(id string) []string {
	return append([]string(nil), c.services[id].Dependencies...)
}

// Dependents returns the ids that list id as a direct dependency.
func (c *Catalog) Dependents(id string) []string {
	return append([]string(nil), c.dependents[id]...)
}

// Profiles returns the known profiles in declaration order.
func (c *Catalog) Profiles() []Profile {
	return append([]Profile(nil), c.profiles...)
}

// Environments returns the known environments in declaration order.
func (c *Catalog) Environments() []Environment {
	return append([]Environment(nil), c.environments...)
}

// Profile looks up a profile by name.
func (c *Catalog) Profile(name string) (Profile, bool) {
	for _, p := range c.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Environment looks up an environment by name.
func (c *Catalog) Environment(name string) (Environment, bool) {
	for _, e := range c.environments {
		if e.Name == name {
			return e, true
		}
	}
	return Environment{}, false
}

// DefaultProfile returns the name of the default profile.
func (c *Catalog) DefaultProfile() string {
	for _, p := range c.profiles {
		if p.Default {
			return p.Name
		}
	}
	return ""
}

// DefaultEnvironment returns the name of the default environment.
func (c *Catalog) DefaultEnvironment() string {
	for _, e := range c.environments {
		if e.Default {
			return e.Name
		}
	}
	return ""
}

func sortByCategory(ids []string, services map[string]ServiceDefinition) {
	sort.SliceStable(ids, func(i, j int) bool {
		ri, rj := categoryRank(services[ids[i]].Category), categoryRank(services[ids[j]].Category)
		if ri != rj {
			return ri < rj
		}
		return ids[i] < ids[j]
	})
}
