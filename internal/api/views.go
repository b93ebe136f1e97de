package api

import (
	"github.com/codex-k8s/localaictl/internal/resolver"
)

// ServiceView is the JSON form of a merged service.
type ServiceView struct {
	ID              string            `json:"id"`
	Category        string            `json:"category"`
	Description     string            `json:"description,omitempty"`
	Required        bool              `json:"required"`
	Enabled         bool              `json:"enabled"`
	Auto            bool              `json:"auto,omitempty"`
	Dependencies    []string          `json:"dependencies,omitempty"`
	RequiredBy      []string          `json:"requiredBy,omitempty"`
	ProfileVariants map[string]string `json:"profileVariants,omitempty"`
	PullVariants    map[string]string `json:"pullVariants,omitempty"`
	External        string            `json:"external,omitempty"`
}

// CategoryView is the JSON form of one category group.
type CategoryView struct {
	Category string        `json:"category"`
	Services []ServiceView `json:"services"`
}

// ConfigView is the JSON form of the merged configuration.
type ConfigView struct {
	Profile     string          `json:"profile"`
	Environment string          `json:"environment"`
	Categories  []CategoryView  `json:"categories"`
	Notes       []resolver.Note `json:"notes,omitempty"`
}

// ChangeView is the JSON form of a single toggle.
type ChangeView struct {
	Service      string   `json:"service"`
	Enabled      bool     `json:"enabled"`
	AutoEnabled  []string `json:"autoEnabled,omitempty"`
	AutoDisabled []string `json:"autoDisabled,omitempty"`
	Released     []string `json:"released,omitempty"`
}

// RejectionView is the JSON form of a rejected toggle.
type RejectionView struct {
	Subject  string   `json:"subject"`
	Reason   string   `json:"reason"`
	Message  string   `json:"message"`
	Affected []string `json:"affected,omitempty"`
}

// NewConfigView converts a merged configuration for JSON output.
func NewConfigView(cfg *resolver.Configuration) ConfigView {
	if cfg == nil {
		return ConfigView{}
	}
	view := ConfigView{Profile: cfg.Profile, Environment: cfg.Environment, Notes: cfg.Notes}
	for _, cv := range cfg.Categories {
		group := CategoryView{Category: string(cv.Category), Services: make([]ServiceView, 0, len(cv.Services))}
		for _, sv := range cv.Services {
			s := ServiceView{
				ID:              sv.ID,
				Category:        string(sv.Category),
				Description:     sv.Description,
				Required:        sv.Required,
				Enabled:         sv.Enabled,
				Auto:            sv.Auto,
				Dependencies:    sv.Dependencies,
				RequiredBy:      sv.RequiredBy,
				ProfileVariants: sv.ProfileVariants,
				PullVariants:    sv.PullVariants,
			}
			if sv.External != nil {
				s.External = sv.External.ComposeFile
			}
			group.Services = append(group.Services, s)
		}
		view.Categories = append(view.Categories, group)
	}
	return view
}

// NewChangeView converts a toggle outcome for JSON output.
func NewChangeView(ch resolver.Change) ChangeView {
	return ChangeView{
		Service:      ch.Service,
		Enabled:      ch.Enabled,
		AutoEnabled:  ch.AutoEnabled,
		AutoDisabled: ch.AutoDisabled,
		Released:     ch.Released,
	}
}

// NewRejectionView converts a rejection for JSON output.
func NewRejectionView(err *resolver.RejectedError) RejectionView {
	return RejectionView{
		Subject:  err.Subject,
		Reason:   string(err.Reason),
		Message:  err.Error(),
		Affected: err.Affected,
	}
}
