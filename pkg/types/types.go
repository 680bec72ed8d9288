package types

import (
	"fmt"
	"time"
)

// App represents an application known to the registry. Apps are created by
// operators and persist indefinitely.
type App struct {
	Name      string
	CreatedAt time.Time
}

// Image is a registry image layer. Identity is the registry layer id; the
// tag reflects the most recent registry sync. Images are keyed by id in
// storage, so re-syncing the same layer updates it in place rather than
// accumulating duplicates.
type Image struct {
	ID  string // registry layer id (8 hex chars)
	App string // owning app name
	Tag string
}

// Host is a docker host managed by the fleet. Identity is hostname+port.
type Host struct {
	Hostname string
	Port     int
	Alias    string
	Status   HostStatus
}

// ID returns the host identity, hostname:port.
func (h *Host) ID() string {
	return fmt.Sprintf("%s:%d", h.Hostname, h.Port)
}

// HostStatus represents host reachability as observed by the last
// reconciliation pass.
type HostStatus string

const (
	HostStatusUp      HostStatus = "up"
	HostStatusDown    HostStatus = "down"
	HostStatusUnknown HostStatus = "unknown"
)

// Container mirrors one container observed on a host. Rows are created on
// first observation, updated on each later observation, and deleted the
// first pass the container is no longer observed.
type Container struct {
	ID         string // runtime container id
	HostID     string // owning host (hostname:port)
	ImageRef   string // e.g. "user/app:tag" as reported by the runtime
	ImageID    string // optional link to an Image, resolved by id prefix
	State      string // runtime-reported: running, exited, ...
	Status     ContainerStatus
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ContainerStatus is the liveness verdict derived from health probing. It is
// distinct from State: a "running" container can still be down.
type ContainerStatus string

const (
	ContainerStatusUp   ContainerStatus = "up"
	ContainerStatusDown ContainerStatus = "down"
)

// Deployment is a rollout target: one app image tag bound to an ordered set
// of hosts in one environment. Its container set is recomputed every
// reconciliation pass and is never a source of truth.
type Deployment struct {
	AppName        string
	ImageTag       string
	Environment    string
	StatusPort     int
	StatusEndpoint string
	Hosts          []string // host IDs, in launch order
	DependsOn      []string // deployment IDs launched ahead of this one
	MappedPorts    []string // "hostPort:containerPort"
	MappedVolumes  []string // "hostPath:containerPath"
	Env            []string
	CreatedAt      time.Time
}

// ID returns the deployment's logical identity, app:tag:environment.
func (d *Deployment) ID() string {
	return fmt.Sprintf("%s:%s:%s", d.AppName, d.ImageTag, d.Environment)
}

// Name returns the human-readable form used in logs.
func (d *Deployment) Name() string {
	return fmt.Sprintf("%s:%s/%s", d.AppName, d.ImageTag, d.Environment)
}

// ImageRef returns the full registry reference for an app image under the
// given registry user.
func ImageRef(user, app, tag string) string {
	return fmt.Sprintf("%s/%s:%s", user, app, tag)
}
