// Package lifecycle defines the contract between the resolution engine and the
// deployer that starts and stops containers for a resolved service list.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codex-k8s/localaictl/internal/resolver"
)

// State is the coarse runtime state of a concrete service.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
	// StateUnknown is reported when the deployer could not be queried.
	StateUnknown State = "unknown"
)

// StartRequest asks the deployer to start concrete services.
type StartRequest struct {
	// Services are concrete compose service ids.
	Services []string
	// External lists services started from their own compose files before Services.
	External []resolver.ExternalDeployment
	// Profile is the selected hardware profile.
	Profile string
	// Environment is the selected exposure mode.
	Environment string
}

// StopRequest asks the deployer to stop services.
type StopRequest struct {
	// Services are concrete compose service ids. Ignored when All is set.
	Services []string
	// External lists enabled external deployments, used to build the project file set.
	External []resolver.ExternalDeployment
	// Profile is the selected hardware profile.
	Profile string
	// Environment is the selected exposure mode.
	Environment string
	// All tears down the whole project instead of stopping Services.
	All bool
	// RemoveVolumes also deletes named volumes and orphan containers. Implies All.
	RemoveVolumes bool
}

// Outcome reports what a deployer did with a request.
type Outcome struct {
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	Accepted bool      `json:"accepted"`
	Services []string  `json:"services,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// NewOutcome starts an outcome record for action.
func NewOutcome(action string, services []string) Outcome {
	return Outcome{
		ID:       uuid.NewString(),
		Action:   action,
		Services: append([]string(nil), services...),
		Started:  time.Now().UTC(),
	}
}

// Finish marks the outcome as done. A non-nil err rejects it with err as reason.
func (o Outcome) Finish(err error) Outcome {
	o.Finished = time.Now().UTC()
	o.Accepted = err == nil
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

// Gateway starts, stops and inspects concrete services.
type Gateway interface {
	Start(ctx context.Context, req StartRequest) (Outcome, error)
	Stop(ctx context.Context, req StopRequest) (Outcome, error)
	// Status maps every requested id to its state. Ids the deployer does not know are stopped.
	Status(ctx context.Context, ids []string) (map[string]State, error)
}
