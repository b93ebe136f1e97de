package compose

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codex-k8s/localaictl/internal/lifecycle"
)

// psEntry is one container from "docker compose ps --format json".
type psEntry struct {
	Name     string `json:"Name"`
	Service  string `json:"Service"`
	State    string `json:"State"`
	Health   string `json:"Health"`
	ExitCode int    `json:"ExitCode"`
}

// parsePS accepts both the JSON array printed by older compose releases and
// the one-object-per-line output of newer ones.
func parsePS(data []byte) ([]psEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var entries []psEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode compose ps output: %w", err)
		}
		return entries, nil
	}

	var entries []psEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry psEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("decode compose ps line: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read compose ps output: %w", err)
	}
	return entries, nil
}

// containerState maps a compose container to a lifecycle state.
func containerState(e psEntry) lifecycle.State {
	if strings.EqualFold(e.Health, "unhealthy") {
		return lifecycle.StateError
	}
	switch strings.ToLower(e.State) {
	case "running":
		return lifecycle.StateRunning
	case "exited":
		if e.ExitCode != 0 {
			return lifecycle.StateError
		}
		return lifecycle.StateStopped
	case "dead", "restarting":
		return lifecycle.StateError
	case "created", "paused", "removing":
		return lifecycle.StateStopped
	default:
		return lifecycle.StateUnknown
	}
}

var stateRank = map[lifecycle.State]int{
	lifecycle.StateStopped: 0,
	lifecycle.StateRunning: 1,
	lifecycle.StateUnknown: 2,
	lifecycle.StateError:   3,
}

// aggregateStates reduces containers to one state per requested service.
// A service with several containers reports its worst state; a service
// without containers is stopped.
func aggregateStates(ids []string, entries []psEntry) map[string]lifecycle.State {
	out := make(map[string]lifecycle.State, len(ids))
	for _, id := range ids {
		out[id] = lifecycle.StateStopped
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if _, wanted := out[e.Service]; !wanted {
			continue
		}
		st := containerState(e)
		if !seen[e.Service] || stateRank[st] > stateRank[out[e.Service]] {
			out[e.Service] = st
		}
		seen[e.Service] = true
	}
	return out
}
