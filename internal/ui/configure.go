package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

// Selection is the operator's answer to the configure form.
type Selection struct {
	Profile     string
	Environment string
	// Enabled holds every non-required service the operator ticked.
	Enabled map[string]bool
}

// Plan lists the toggles that turn the current configuration into a selection.
// Disables run first so an explicit enable always wins over a cascade.
type Plan struct {
	Disable     []string
	Enable      []string
	Profile     string
	Environment string
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Disable) == 0 && len(p.Enable) == 0 && p.Profile == "" && p.Environment == ""
}

// RunConfigure shows an interactive form prefilled from cfg.
func RunConfigure(cat *catalog.Catalog, cfg *resolver.Configuration) (Selection, error) {
	sel := Selection{Profile: cfg.Profile, Environment: cfg.Environment, Enabled: map[string]bool{}}

	profileOpts := make([]huh.Option[string], 0, len(cat.Profiles()))
	for _, prof := range cat.Profiles() {
		profileOpts = append(profileOpts, huh.NewOption(fmt.Sprintf("%s - %s", prof.Name, prof.Description), prof.Name))
	}
	envOpts := make([]huh.Option[string], 0, len(cat.Environments()))
	for _, e := range cat.Environments() {
		envOpts = append(envOpts, huh.NewOption(fmt.Sprintf("%s - %s", e.Name, e.Description), e.Name))
	}
	groups := []*huh.Group{huh.NewGroup(
		huh.NewSelect[string]().Title("Hardware profile").Options(profileOpts...).Value(&sel.Profile),
		huh.NewSelect[string]().Title("Environment").Options(envOpts...).Value(&sel.Environment),
	)}

	picked := make(map[catalog.Category]*[]string)
	for _, cv := range cfg.Categories {
		var opts []huh.Option[string]
		var required []string
		for _, sv := range cv.Services {
			if sv.Required {
				required = append(required, sv.ID)
				continue
			}
			label := sv.ID
			if sv.Description != "" {
				label += " - " + sv.Description
			}
			opts = append(opts, huh.NewOption(label, sv.ID).Selected(sv.Enabled))
		}
		if len(opts) == 0 {
			continue
		}
		values := new([]string)
		picked[cv.Category] = values
		desc := "Dependencies are enabled automatically."
		if len(required) > 0 {
			desc += " Always on: " + strings.Join(required, ", ")
		}
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(categoryTitle(cv.Category)).
				Description(desc).
				Options(opts...).
				Value(values),
		))
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		return Selection{}, err
	}
	for _, values := range picked {
		for _, id := range *values {
			sel.Enabled[id] = true
		}
	}
	return sel, nil
}

// PlanSelection diffs sel against cfg. Wanted services that the planned
// disables would cascade off are enabled again.
func PlanSelection(cat *catalog.Catalog, cfg *resolver.Configuration, sel Selection) Plan {
	var plan Plan
	set, auto := cfg.Enabled(), cfg.Auto()
	for _, cv := range cfg.Categories {
		for _, sv := range cv.Services {
			if !sv.Required && sv.Enabled && !sel.Enabled[sv.ID] {
				plan.Disable = append(plan.Disable, sv.ID)
			}
		}
	}
	sort.Strings(plan.Disable)
	for _, id := range plan.Disable {
		if !set.Has(id) {
			continue
		}
		if change, err := resolver.Disable(cat, set, auto, id); err == nil {
			set, auto = change.Set, change.Auto
		}
	}
	for _, cv := range cfg.Categories {
		for _, sv := range cv.Services {
			if !sv.Required && sel.Enabled[sv.ID] && !set.Has(sv.ID) {
				plan.Enable = append(plan.Enable, sv.ID)
			}
		}
	}
	sort.Strings(plan.Enable)

	if sel.Profile != "" && sel.Profile != cfg.Profile {
		plan.Profile = sel.Profile
	}
	if sel.Environment != "" && sel.Environment != cfg.Environment {
		plan.Environment = sel.Environment
	}
	return plan
}

func categoryTitle(c catalog.Category) string {
	switch c {
	case catalog.CategoryAIPlatform:
		return "AI platform"
	case catalog.CategoryLLM:
		return "LLM runtime"
	default:
		s := string(c)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
