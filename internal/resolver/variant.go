package resolver

import (
	"sort"

	"github.com/codex-k8s/localaictl/internal/catalog"
)

// VariantResolution maps a logical service to the concrete ids started for a profile.
type VariantResolution struct {
	// Service is the logical catalog id.
	Service string
	// Concrete is the compose service id to start.
	Concrete string
	// Pull is an auxiliary one-shot service id, empty when the profile has none.
	Pull string
}

// Substituted reports whether the concrete id differs from the logical id.
func (v VariantResolution) Substituted() bool {
	return v.Concrete != v.Service
}

// ResolveVariant resolves the concrete ids of def for profile.
// A service without a variant for the profile passes through unchanged.
func ResolveVariant(def catalog.ServiceDefinition, profile string) VariantResolution {
	res := VariantResolution{Service: def.ID, Concrete: def.ID}
	if variant, ok := def.ProfileVariants[profile]; ok {
		res.Concrete = variant
	}
	if pull, ok := def.PullVariants[profile]; ok {
		res.Pull = pull
	}
	return res
}

// ExternalDeployment is an enabled service started from its own compose file.
type ExternalDeployment struct {
	Service     string `json:"service"`
	ComposeFile string `json:"composeFile"`
}

// EffectiveList is the input handed to the lifecycle gateway.
type EffectiveList struct {
	// Profile is the profile the list was resolved for.
	Profile string `json:"profile"`
	// Services holds concrete compose service ids, sorted and unique.
	Services []string `json:"services"`
	// External holds enabled services with their own deployment descriptor.
	External []ExternalDeployment `json:"external,omitempty"`
	// Resolutions holds the per-service substitutions in catalog order.
	Resolutions []VariantResolution `json:"-"`
}

// Effective computes the concrete services to start for the enabled set and profile.
func Effective(cat *catalog.Catalog, set Set, profile string) EffectiveList {
	list := EffectiveList{Profile: profile}
	seen := make(map[string]bool)
	addService := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		list.Services = append(list.Services, id)
	}

	for _, def := range cat.All() {
		if !set.Has(def.ID) {
			continue
		}
		if def.External != nil {
			list.External = append(list.External, ExternalDeployment{Service: def.ID, ComposeFile: def.External.ComposeFile})
			continue
		}
		res := ResolveVariant(def, profile)
		list.Resolutions = append(list.Resolutions, res)
		addService(res.Concrete)
		addService(res.Pull)
	}
	sort.Strings(list.Services)
	return list
}

// Empty reports whether nothing would be started.
func (l EffectiveList) Empty() bool {
	return len(l.Services) == 0 && len(l.External) == 0
}
