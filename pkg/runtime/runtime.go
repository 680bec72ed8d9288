package runtime

import (
	"context"
	"encoding/json"
	"io"

	"github.com/bearops/shepherd/pkg/types"
)

// ContainerInfo is one entry of a host snapshot: the raw container state as
// the runtime reports it. Timestamps stay ISO-8601 strings here; the
// reconciler normalizes them.
type ContainerInfo struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	ImageID    string `json:"image_id"`
	ImageRef   string `json:"image_ref"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Command    string `json:"command,omitempty"`
}

// LaunchSpec describes one container to create and start.
type LaunchSpec struct {
	Name    string   `json:"name"`
	Image   string   `json:"image"`
	Ports   []string `json:"ports,omitempty"`   // "hostPort:containerPort"
	Volumes []string `json:"volumes,omitempty"` // "hostPath:containerPath"
	Env     []string `json:"env,omitempty"`
}

// Plan is a deployment serialized with its transitive dependency metadata.
// Dependencies are ordered: they launch before the deployment itself.
type Plan struct {
	Deployment   LaunchSpec   `json:"deployment"`
	Dependencies []LaunchSpec `json:"dependencies,omitempty"`
}

// Encode serializes the plan for shipping to a host.
func (p *Plan) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePlan is the inverse of Encode.
func DecodePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Runtime is the per-host container runtime client. Implementations must
// bound every call with the supplied context.
type Runtime interface {
	// Snapshot lists all containers on the host with their current state.
	Snapshot(ctx context.Context) ([]ContainerInfo, error)

	// CreateAndStart creates and starts one container, returning its id.
	CreateAndStart(ctx context.Context, spec LaunchSpec) (string, error)

	// Stop stops a running container.
	Stop(ctx context.Context, id string) error

	// Remove deletes a container.
	Remove(ctx context.Context, id string) error

	// Logs streams up to tail lines of a container's output.
	Logs(ctx context.Context, id string, tail int) (io.ReadCloser, error)

	// Deploy launches an encoded deployment plan, dependencies first.
	Deploy(ctx context.Context, encoded []byte) error

	// Close releases the client connection.
	Close() error
}

// Dialer opens a Runtime for a host. The reconciliation core only ever sees
// this interface, so tests can substitute fakes.
type Dialer interface {
	Dial(host *types.Host) (Runtime, error)
}
