// Package monitor lists running containers and reads their stats and logs.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the normalized container status.
type Status string

const (
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusRestarting Status = "restarting"
	StatusExited     Status = "exited"
	StatusCreated    Status = "created"
	StatusDead       Status = "dead"
	StatusUnknown    Status = "unknown"
)

// ParseStatus normalizes a runtime state string.
func ParseStatus(s string) Status {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusRunning, StatusPaused, StatusRestarting, StatusExited, StatusCreated, StatusDead:
		return st
	case "removing":
		return StatusExited
	default:
		return StatusUnknown
	}
}

// Port is a published container port.
type Port struct {
	IP          string `json:"ip,omitempty"`
	PrivatePort uint16 `json:"privatePort"`
	PublicPort  uint16 `json:"publicPort,omitempty"`
	Protocol    string `json:"protocol"`
}

func (p Port) String() string {
	if p.PublicPort == 0 {
		return fmt.Sprintf("%d/%s", p.PrivatePort, p.Protocol)
	}
	return fmt.Sprintf("%d->%d/%s", p.PublicPort, p.PrivatePort, p.Protocol)
}

// Container is a normalized container record.
type Container struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	Status    Status    `json:"status"`
	Ports     []Port    `json:"ports,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	// Service is the compose service label, empty for containers outside compose.
	Service string `json:"service,omitempty"`
	// Project is the compose project label.
	Project string `json:"project,omitempty"`
}

// Stats is one resource usage sample.
type Stats struct {
	CPUPercent     float64   `json:"cpuPercent"`
	MemoryUsed     uint64    `json:"memoryUsed"`
	MemoryLimit    uint64    `json:"memoryLimit"`
	MemoryPercent  float64   `json:"memoryPercent"`
	NetworkRxBytes uint64    `json:"networkRxBytes"`
	NetworkTxBytes uint64    `json:"networkTxBytes"`
	DiskReadBytes  uint64    `json:"diskReadBytes"`
	DiskWriteBytes uint64    `json:"diskWriteBytes"`
	Timestamp      time.Time `json:"timestamp"`
}

// Level is an inferred log severity.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
)

// LogRecord is one container log line.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// LogOptions selects log lines.
type LogOptions struct {
	// Tail is the number of trailing lines, 0 for all.
	Tail int
	// Since drops lines older than this time when non-zero.
	Since time.Time
}

// Action is a container control operation.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionPause   Action = "pause"
	ActionUnpause Action = "unpause"
)

// ParseAction validates a textual action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStart, ActionStop, ActionRestart, ActionPause, ActionUnpause:
		return a, nil
	default:
		return "", fmt.Errorf("unknown container action %q", s)
	}
}

// Adapter reads and controls containers of the container runtime.
type Adapter interface {
	ListContainers(ctx context.Context) ([]Container, error)
	Stats(ctx context.Context, containerID string) (Stats, error)
	Logs(ctx context.Context, containerID string, opts LogOptions) ([]LogRecord, error)
	Act(ctx context.Context, containerID string, action Action) error
}

// CPUPercent computes CPU usage from two cumulative samples.
// A non-positive system delta yields 0. When onlineCPUs is 0 the caller
// should pass the number of per-cpu counters instead.
func CPUPercent(cpuDelta, systemDelta float64, onlineCPUs int) float64 {
	if systemDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	if onlineCPUs <= 0 {
		onlineCPUs = 1
	}
	return cpuDelta / systemDelta * float64(onlineCPUs) * 100
}

// MemoryPercent returns used/limit as a percentage, 0 for a zero limit.
func MemoryPercent(used, limit uint64) float64 {
	if limit == 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}

// InferLevel guesses the severity of a log line by keyword.
func InferLevel(line string) Level {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "error"), strings.Contains(l, "fatal"):
		return LevelError
	case strings.Contains(l, "warn"):
		return LevelWarn
	case strings.Contains(l, "debug"):
		return LevelDebug
	default:
		return LevelInfo
	}
}

// ParseSince accepts an RFC 3339 timestamp or a duration relative to now.
// An empty value yields the zero time.
func ParseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return time.Time{}, errors.New("since must be an RFC 3339 time or a positive duration")
	}
	return now.Add(-d), nil
}
