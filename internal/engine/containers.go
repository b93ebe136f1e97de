package engine

import (
	"context"
	"sort"

	"github.com/codex-k8s/localaictl/internal/monitor"
)

// ContainerView is a runtime container annotated with the logical catalog service it runs.
type ContainerView struct {
	monitor.Container
	// Logical is the catalog id behind the compose service, empty when unknown.
	Logical string `json:"logical,omitempty"`
}

// ContainerStats is the stats sample of one container or the reason it is missing.
type ContainerStats struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Service string         `json:"service,omitempty"`
	Stats   *monitor.Stats `json:"stats,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ContainerFilter narrows container listings by logical service id.
type ContainerFilter struct {
	Only map[string]struct{}
	Skip map[string]struct{}
}

// Containers lists runtime containers with their logical service.
func (e *Engine) Containers(ctx context.Context, filter ContainerFilter) ([]ContainerView, error) {
	if e.opts.Monitor == nil {
		return nil, ErrNoMonitor
	}
	containers, err := e.opts.Monitor.ListContainers(ctx)
	if err != nil {
		e.opts.Metrics.ObserveAdapterFailure("list")
		return nil, err
	}

	logical := e.logicalIndex()
	out := make([]ContainerView, 0, len(containers))
	for _, c := range containers {
		view := ContainerView{Container: c, Logical: logical[c.Service]}
		if !resourceIncluded(view.Logical, filter.Only, filter.Skip) {
			continue
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stats samples the given containers concurrently, or every running
// container when ids is empty. A failing container is reported in its own
// entry and never fails the call.
func (e *Engine) Stats(ctx context.Context, ids []string) ([]ContainerStats, error) {
	if e.opts.Monitor == nil {
		return nil, ErrNoMonitor
	}

	views, listErr := e.Containers(ctx, ContainerFilter{})
	if listErr != nil && len(ids) == 0 {
		return nil, listErr
	}
	byID := make(map[string]ContainerView, len(views))
	for _, v := range views {
		byID[v.ID] = v
		byID[v.Name] = v
	}
	if len(ids) == 0 {
		for _, v := range views {
			if v.Status == monitor.StatusRunning {
				ids = append(ids, v.ID)
			}
		}
	}

	results := monitor.StatsAll(ctx, e.opts.Monitor, ids, e.opts.StatsTimeout, e.opts.StatsConcurrency)
	out := make([]ContainerStats, 0, len(ids))
	for _, id := range ids {
		entry := ContainerStats{ID: id}
		if v, ok := byID[id]; ok {
			entry.Name = v.Name
			entry.Service = v.Logical
		}
		res := results[id]
		if res.Err != nil {
			e.opts.Metrics.ObserveAdapterFailure("stats")
			e.logger.Warn("container stats unavailable", "container", id, "error", res.Err)
			entry.Error = res.Err.Error()
		} else {
			st := res.Stats
			entry.Stats = &st
			e.opts.Metrics.SetContainerStats(nameOr(entry.Name, id), entry.Service, st.CPUPercent, st.MemoryUsed, st.MemoryPercent)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Logs reads the log lines of one container.
func (e *Engine) Logs(ctx context.Context, id string, opts monitor.LogOptions) ([]monitor.LogRecord, error) {
	if e.opts.Monitor == nil {
		return nil, ErrNoMonitor
	}
	if e.opts.LogsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.LogsTimeout)
		defer cancel()
	}
	records, err := e.opts.Monitor.Logs(ctx, id, opts)
	if err != nil {
		e.opts.Metrics.ObserveAdapterFailure("logs")
		return nil, err
	}
	return records, nil
}

// Act runs a control action on one container.
func (e *Engine) Act(ctx context.Context, id string, action monitor.Action) error {
	if e.opts.Monitor == nil {
		return ErrNoMonitor
	}
	if err := e.opts.Monitor.Act(ctx, id, action); err != nil {
		e.opts.Metrics.ObserveAdapterFailure(string(action))
		e.logger.Error("container action failed", "container", id, "action", action, "error", err)
		return err
	}
	e.logger.Info("container action", "container", id, "action", action)
	return nil
}

// logicalIndex maps every concrete compose id of every profile to its catalog id.
func (e *Engine) logicalIndex() map[string]string {
	index := make(map[string]string)
	for _, def := range e.opts.Catalog.All() {
		index[def.ID] = def.ID
		for _, v := range def.ProfileVariants {
			index[v] = def.ID
		}
		for _, p := range def.PullVariants {
			index[p] = def.ID
		}
	}
	return index
}

func nameOr(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
