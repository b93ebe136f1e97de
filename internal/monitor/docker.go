package monitor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	composeServiceLabel = "com.docker.compose.service"
	composeProjectLabel = "com.docker.compose.project"
)

// dockerAPI is the subset of the Docker Engine client used by Docker.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStats(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerPause(ctx context.Context, containerID string) error
	ContainerUnpause(ctx context.Context, containerID string) error
	Close() error
}

// Docker implements Adapter on top of the Docker Engine API.
type Docker struct {
	api     dockerAPI
	project string
}

var _ Adapter = (*Docker)(nil)

// NewDocker connects to the engine from DOCKER_HOST or host when set.
// A non-empty project restricts listings to that compose project.
func NewDocker(host, project string) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Docker{api: cli, project: project}, nil
}

// Close releases the underlying client.
func (d *Docker) Close() error {
	return d.api.Close()
}

// ListContainers returns every container, including stopped ones.
func (d *Docker) ListContainers(ctx context.Context) ([]Container, error) {
	summaries, err := d.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		if d.project != "" && s.Labels[composeProjectLabel] != d.project {
			continue
		}
		c := Container{
			ID:        s.ID,
			Image:     s.Image,
			Status:    ParseStatus(string(s.State)),
			CreatedAt: time.Unix(s.Created, 0).UTC(),
			Service:   s.Labels[composeServiceLabel],
			Project:   s.Labels[composeProjectLabel],
		}
		if len(s.Names) > 0 {
			c.Name = strings.TrimPrefix(s.Names[0], "/")
		}
		for _, p := range s.Ports {
			c.Ports = append(c.Ports, Port{IP: p.IP, PrivatePort: p.PrivatePort, PublicPort: p.PublicPort, Protocol: p.Type})
		}
		out = append(out, c)
	}
	return out, nil
}

// Stats takes one sample of the container's resource usage.
func (d *Docker) Stats(ctx context.Context, containerID string) (Stats, error) {
	resp, err := d.api.ContainerStats(ctx, containerID, false)
	if err != nil {
		return Stats{}, fmt.Errorf("stats %q: %w", containerID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Stats{}, fmt.Errorf("decode stats %q: %w", containerID, err)
	}
	return normalizeStats(payload, time.Now), nil
}

// Logs returns the container's log lines with inferred levels.
func (d *Docker) Logs(ctx context.Context, containerID string, opts LogOptions) ([]LogRecord, error) {
	inspect, err := d.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspect %q: %w", containerID, err)
	}

	lopts := container.LogsOptions{ShowStdout: true, ShowStderr: true, Timestamps: true, Tail: "all"}
	if opts.Tail > 0 {
		lopts.Tail = strconv.Itoa(opts.Tail)
	}
	if !opts.Since.IsZero() {
		lopts.Since = strconv.FormatInt(opts.Since.Unix(), 10)
	}
	rc, err := d.api.ContainerLogs(ctx, containerID, lopts)
	if err != nil {
		return nil, fmt.Errorf("logs %q: %w", containerID, err)
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	if inspect.Config != nil && inspect.Config.Tty {
		_, err = io.Copy(&buf, rc)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, rc)
	}
	if err != nil {
		return nil, fmt.Errorf("read logs %q: %w", containerID, err)
	}
	return parseLogLines(&buf)
}

// Act runs a control action on the container.
func (d *Docker) Act(ctx context.Context, containerID string, action Action) error {
	var err error
	switch action {
	case ActionStart:
		err = d.api.ContainerStart(ctx, containerID, container.StartOptions{})
	case ActionStop:
		err = d.api.ContainerStop(ctx, containerID, container.StopOptions{})
	case ActionRestart:
		err = d.api.ContainerRestart(ctx, containerID, container.StopOptions{})
	case ActionPause:
		err = d.api.ContainerPause(ctx, containerID)
	case ActionUnpause:
		err = d.api.ContainerUnpause(ctx, containerID)
	default:
		return fmt.Errorf("unknown container action %q", action)
	}
	if err != nil {
		return fmt.Errorf("%s %q: %w", action, containerID, err)
	}
	return nil
}

func parseLogLines(r io.Reader) ([]LogRecord, error) {
	var out []LogRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		rec := LogRecord{Message: line}
		if ts, rest, ok := strings.Cut(line, " "); ok {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				rec.Timestamp = t
				rec.Message = rest
			}
		}
		rec.Level = InferLevel(rec.Message)
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeStats converts one engine stats sample.
func normalizeStats(p container.StatsResponse, now func() time.Time) Stats {
	cpus := int(p.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = len(p.CPUStats.CPUUsage.PercpuUsage)
	}
	cpuDelta := float64(p.CPUStats.CPUUsage.TotalUsage) - float64(p.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(p.CPUStats.SystemUsage) - float64(p.PreCPUStats.SystemUsage)

	used := p.MemoryStats.Usage
	// cgroup v2 reports inactive_file, v1 total_inactive_file.
	for _, key := range []string{"inactive_file", "total_inactive_file"} {
		if cache, ok := p.MemoryStats.Stats[key]; ok && cache < used {
			used -= cache
			break
		}
	}

	st := Stats{
		CPUPercent:    CPUPercent(cpuDelta, systemDelta, cpus),
		MemoryUsed:    used,
		MemoryLimit:   p.MemoryStats.Limit,
		MemoryPercent: MemoryPercent(used, p.MemoryStats.Limit),
		Timestamp:     p.Read,
	}
	for _, n := range p.Networks {
		st.NetworkRxBytes += n.RxBytes
		st.NetworkTxBytes += n.TxBytes
	}
	for _, e := range p.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(e.Op) {
		case "read":
			st.DiskReadBytes += e.Value
		case "write":
			st.DiskWriteBytes += e.Value
		}
	}
	if st.Timestamp.IsZero() || st.Timestamp.Year() < 2000 {
		st.Timestamp = now().UTC()
	}
	return st
}
