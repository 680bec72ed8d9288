package runtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	registrytypes "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/bearops/shepherd/pkg/config"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/types"
)

// DockerDialer opens TLS docker clients for fleet hosts. One dialer is
// shared by the whole worker; clients are cheap and opened per call site.
type DockerDialer struct {
	docker   config.DockerConfig
	registry config.RegistryConfig
}

// NewDockerDialer creates a dialer using the shared TLS client material and
// registry credentials from the worker config.
func NewDockerDialer(docker config.DockerConfig, registry config.RegistryConfig) *DockerDialer {
	return &DockerDialer{docker: docker, registry: registry}
}

// Dial connects to the docker daemon on the given host.
func (d *DockerDialer) Dial(host *types.Host) (Runtime, error) {
	opts := []client.Opt{
		client.WithHost(fmt.Sprintf("tcp://%s:%d", host.Hostname, host.Port)),
		client.WithAPIVersionNegotiation(),
	}
	if d.docker.CACert != "" {
		opts = append(opts, client.WithTLSClientConfig(
			d.docker.CACert, d.docker.ClientCert, d.docker.ClientKey))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client for %s: %w", host.ID(), err)
	}

	return &DockerRuntime{cli: cli, host: host.ID(), registry: d.registry}, nil
}

// DockerRuntime implements Runtime against one host's docker daemon.
type DockerRuntime struct {
	cli      *client.Client
	host     string
	registry config.RegistryConfig
}

// Close releases the client connection.
func (r *DockerRuntime) Close() error {
	return r.cli.Close()
}

// Snapshot lists every container on the host, inspecting each one for its
// start and finish timestamps, which the list endpoint does not carry.
func (r *DockerRuntime) Snapshot(ctx context.Context) ([]ContainerInfo, error) {
	containers, err := r.cli.ContainerList(ctx, dockertypes.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers on %s: %w", r.host, err)
	}

	logger := log.WithHost(r.host)
	var infos []ContainerInfo
	for _, c := range containers {
		inspect, err := r.cli.ContainerInspect(ctx, c.ID)
		if err != nil {
			// The container can disappear between list and inspect; it will
			// be picked up or deleted on the next pass.
			logger.Warn().Err(err).Str("container", c.ID).Msg("inspect failed, skipping")
			continue
		}

		infos = append(infos, ContainerInfo{
			ID:         c.ID,
			State:      c.State,
			ImageID:    strings.TrimPrefix(c.ImageID, "sha256:"),
			ImageRef:   c.Image,
			StartedAt:  inspect.State.StartedAt,
			FinishedAt: inspect.State.FinishedAt,
			Command:    c.Command,
		})
	}
	return infos, nil
}

// CreateAndStart pulls the image, creates the container with its port and
// volume bindings, and starts it.
func (r *DockerRuntime) CreateAndStart(ctx context.Context, spec LaunchSpec) (string, error) {
	if err := r.pull(ctx, spec.Image); err != nil {
		return "", err
	}

	exposed, bindings, err := portBindings(spec.Ports)
	if err != nil {
		return "", fmt.Errorf("invalid port mapping for %s: %w", spec.Name, err)
	}

	resp, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			Env:          spec.Env,
			ExposedPorts: exposed,
		},
		&container.HostConfig{
			PortBindings: bindings,
			Binds:        spec.Volumes,
		},
		nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s on %s: %w", spec.Name, r.host, err)
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, dockertypes.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container %s on %s: %w", resp.ID, r.host, err)
	}
	return resp.ID, nil
}

// Stop stops a running container.
func (r *DockerRuntime) Stop(ctx context.Context, id string) error {
	return r.cli.ContainerStop(ctx, id, container.StopOptions{})
}

// Remove deletes a container.
func (r *DockerRuntime) Remove(ctx context.Context, id string) error {
	return r.cli.ContainerRemove(ctx, id, dockertypes.ContainerRemoveOptions{Force: true})
}

// Logs returns a stream of the container's most recent output.
func (r *DockerRuntime) Logs(ctx context.Context, id string, tail int) (io.ReadCloser, error) {
	return r.cli.ContainerLogs(ctx, id, dockertypes.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       strconv.Itoa(tail),
	})
}

// Deploy decodes a plan and launches its entries, dependencies first.
func (r *DockerRuntime) Deploy(ctx context.Context, encoded []byte) error {
	plan, err := DecodePlan(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode deployment plan: %w", err)
	}

	for _, dep := range plan.Dependencies {
		if _, err := r.CreateAndStart(ctx, dep); err != nil {
			return fmt.Errorf("dependency %s: %w", dep.Name, err)
		}
	}
	_, err = r.CreateAndStart(ctx, plan.Deployment)
	return err
}

func (r *DockerRuntime) pull(ctx context.Context, image string) error {
	opts := dockertypes.ImagePullOptions{}
	if r.registry.Username != "" {
		auth, err := json.Marshal(registrytypes.AuthConfig{
			Username: r.registry.Username,
			Password: r.registry.Password,
		})
		if err != nil {
			return err
		}
		opts.RegistryAuth = base64.URLEncoding.EncodeToString(auth)
	}

	reader, err := r.cli.ImagePull(ctx, image, opts)
	if err != nil {
		return fmt.Errorf("failed to pull image %s on %s: %w", image, r.host, err)
	}
	defer reader.Close()

	// The pull only completes once the stream is drained.
	_, err = io.Copy(io.Discard, reader)
	return err
}

func portBindings(ports []string) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}

	// nat expects "hostPort:containerPort" specs, same shape we store.
	exposed, bindings, err := nat.ParsePortSpecs(ports)
	if err != nil {
		return nil, nil, err
	}
	return exposed, bindings, nil
}
