package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/lifecycle"
	"github.com/codex-k8s/localaictl/internal/monitor"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

// Config prints the merged configuration grouped by category.
func (p *Printer) Config(cfg *resolver.Configuration) {
	p.Line("Profile: %s   Environment: %s", p.boldStyle.Render(cfg.Profile), p.boldStyle.Render(cfg.Environment))
	var rows [][]string
	for _, cv := range cfg.Categories {
		for _, sv := range cv.Services {
			state := "disabled"
			if sv.Enabled {
				state = "enabled"
			}
			flags := ""
			if sv.Required {
				flags = "required"
			}
			if sv.Auto {
				flags = "auto"
			}
			if sv.External != nil {
				flags = strings.TrimSpace(flags + " external")
			}
			rows = append(rows, []string{
				string(cv.Category), sv.ID, p.state(state), flags, join(sv.Dependencies), join(sv.RequiredBy),
			})
		}
	}
	p.Table([]string{"CATEGORY", "SERVICE", "STATE", "FLAGS", "DEPENDS ON", "REQUIRED BY"}, rows)
	p.Notes(cfg.Notes)
}

// Notes prints reconciliation notes.
func (p *Printer) Notes(notes []resolver.Note) {
	for _, n := range notes {
		switch n.Kind {
		case resolver.NoteUnknownService:
			p.Warn("stored preference for unknown service %q ignored", n.Subject)
		case resolver.NoteImpliedDependency:
			p.Warn("dependency %q enabled to satisfy enabled services", n.Subject)
		case resolver.NoteDefaultProfile:
			p.Warn("stored profile %q is invalid, using default", n.Subject)
		case resolver.NoteDefaultEnvironment:
			p.Warn("stored environment %q is invalid, using default", n.Subject)
		case resolver.NoteStoreUnavailable:
			p.Warn("preferences unavailable, showing defaults: %s", n.Subject)
		default:
			p.Warn("%s: %s", n.Kind, n.Subject)
		}
	}
}

// Change prints the outcome of a single toggle.
func (p *Printer) Change(ch resolver.Change) {
	verb := "disabled"
	if ch.Enabled {
		verb = "enabled"
	}
	p.Success("%s %s", ch.Service, verb)
	if len(ch.AutoEnabled) > 0 {
		p.Line("  also enabled: %s", join(ch.AutoEnabled))
	}
	if len(ch.AutoDisabled) > 0 {
		p.Line("  also disabled: %s", join(ch.AutoDisabled))
	}
	if len(ch.Released) > 0 {
		p.Line("  no longer needed: %s", join(ch.Released))
	}
}

// Bulk prints the outcome of a category toggle.
func (p *Printer) Bulk(b resolver.BulkChange) {
	for _, ch := range b.Changes {
		p.Change(ch)
	}
	if len(b.Changes) == 0 {
		p.Line("nothing to change")
	}
	for _, rej := range b.Rejected {
		p.Warn("%s", rej.Error())
	}
}

// Effective prints the concrete service list.
func (p *Printer) Effective(list resolver.EffectiveList) {
	p.Line("Profile: %s", p.boldStyle.Render(list.Profile))
	rows := make([][]string, 0, len(list.Resolutions)+len(list.External))
	for _, res := range list.Resolutions {
		pull := res.Pull
		if pull == "" {
			pull = "-"
		}
		rows = append(rows, []string{res.Service, res.Concrete, pull})
	}
	for _, ext := range list.External {
		rows = append(rows, []string{ext.Service, "external: " + ext.ComposeFile, "-"})
	}
	p.Table([]string{"SERVICE", "STARTS AS", "PULL"}, rows)
}

// Outcome prints a lifecycle outcome.
func (p *Printer) Outcome(o lifecycle.Outcome) {
	took := o.Finished.Sub(o.Started).Round(time.Millisecond)
	if o.Accepted {
		p.Success("%s completed in %s (%s)", o.Action, took, o.ID)
		return
	}
	p.Error(fmt.Sprintf("%s failed after %s: %s", o.Action, took, o.Reason), "")
}

// Status prints the runtime state of enabled services.
func (p *Printer) Status(r engine.StatusReport) {
	rows := make([][]string, 0, len(r.Services))
	for _, s := range r.Services {
		concrete := s.Concrete
		if s.External {
			concrete = "(external)"
		}
		rows = append(rows, []string{s.Service, s.Category, concrete, p.state(string(s.State))})
	}
	p.Table([]string{"SERVICE", "CATEGORY", "CONTAINER SERVICE", "STATE"}, rows)
	if r.Error != "" {
		p.Warn("runtime status unavailable: %s", r.Error)
	}
}

// Containers prints runtime containers.
func (p *Printer) Containers(views []engine.ContainerView) {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		ports := make([]string, 0, len(v.Ports))
		for _, port := range v.Ports {
			ports = append(ports, port.String())
		}
		id := v.ID
		if len(id) > 12 {
			id = id[:12]
		}
		logical := v.Logical
		if logical == "" {
			logical = "-"
		}
		rows = append(rows, []string{id, v.Name, logical, p.state(string(v.Status)), v.Image, join(ports)})
	}
	p.Table([]string{"ID", "NAME", "SERVICE", "STATUS", "IMAGE", "PORTS"}, rows)
}

// Stats prints container resource usage.
func (p *Printer) Stats(stats []engine.ContainerStats) {
	sorted := append([]engine.ContainerStats(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	rows := make([][]string, 0, len(sorted))
	for _, s := range sorted {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		if s.Stats == nil {
			rows = append(rows, []string{name, "-", "-", "-", "-", p.errorStyle.Render(s.Error)})
			continue
		}
		st := s.Stats
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.1f%%", st.CPUPercent),
			fmt.Sprintf("%s / %s", Bytes(st.MemoryUsed), Bytes(st.MemoryLimit)),
			fmt.Sprintf("%.1f%%", st.MemoryPercent),
			fmt.Sprintf("%s / %s", Bytes(st.NetworkRxBytes), Bytes(st.NetworkTxBytes)),
			fmt.Sprintf("%s / %s", Bytes(st.DiskReadBytes), Bytes(st.DiskWriteBytes)),
		})
	}
	p.Table([]string{"CONTAINER", "CPU", "MEMORY", "MEM %", "NET RX/TX", "DISK R/W"}, rows)
}

// Logs prints log records with their level.
func (p *Printer) Logs(records []monitor.LogRecord) {
	for _, r := range records {
		ts := ""
		if !r.Timestamp.IsZero() {
			ts = p.dimStyle.Render(r.Timestamp.Local().Format(time.DateTime)) + " "
		}
		level := strings.ToUpper(string(r.Level))
		switch r.Level {
		case monitor.LevelError:
			level = p.errorStyle.Render(level)
		case monitor.LevelWarn:
			level = p.warnStyle.Render(level)
		default:
			level = p.dimStyle.Render(level)
		}
		fmt.Fprintf(p.w, "%s%s %s\n", ts, level, r.Message)
	}
}

// Bytes formats n with a binary unit.
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}
