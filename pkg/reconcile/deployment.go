package reconcile

import (
	"context"

	"github.com/bearops/shepherd/pkg/health"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/metrics"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

// LinkDeployment recomputes the deployment's container set: every persisted
// container whose image reference matches the deployment's app and tag.
// The set is derived fresh each pass and never stored on the deployment.
func (r *Reconciler) LinkDeployment(txn *storage.Txn, dep *types.Deployment) ([]*types.Container, error) {
	ref := types.ImageRef(r.user, dep.AppName, dep.ImageTag)
	containers, err := txn.ListContainersByImageRef(ref)
	if err != nil {
		return nil, err
	}

	logger := log.WithDeployment(dep.Name())
	for _, container := range containers {
		logger.Debug().Str("container", container.ID).Str("state", container.State).
			Msg("container linked to deployment")
	}
	return containers, nil
}

// UpdateDeploymentStatus probes each linked container and persists the
// verdict. Only containers the runtime reports as running are probed;
// everything else is down without a network call.
func (r *Reconciler) UpdateDeploymentStatus(ctx context.Context, txn *storage.Txn, dep *types.Deployment, containers []*types.Container) error {
	logger := log.WithDeployment(dep.Name())

	for _, container := range containers {
		container.Status = r.containerStatus(ctx, txn, dep, container)
		logger.Info().Str("container", container.ID).Str("status", string(container.Status)).
			Msg("container status updated")
		txn.PutContainer(container)
	}
	return nil
}

func (r *Reconciler) containerStatus(ctx context.Context, txn *storage.Txn, dep *types.Deployment, container *types.Container) types.ContainerStatus {
	if container.State != runningState {
		return types.ContainerStatusDown
	}

	logger := log.WithDeployment(dep.Name())

	host, err := txn.GetHost(container.HostID)
	if err != nil {
		logger.Warn().Err(err).Str("container", container.ID).
			Msg("no host for container, marking down")
		return types.ContainerStatusDown
	}

	url := health.URL(host.Hostname, dep.StatusPort, dep.StatusEndpoint)
	logger.Info().Str("container", container.ID).Str("url", url).Msg("checking status")

	result, err := r.prober.Probe(ctx, url)
	if err != nil {
		logger.Warn().Err(err).Str("container", container.ID).
			Msg("status check failed, marking down")
		metrics.ProbesTotal.WithLabelValues("error").Inc()
		return types.ContainerStatusDown
	}

	if result.Up {
		metrics.ProbesTotal.WithLabelValues("up").Inc()
		return types.ContainerStatusUp
	}
	metrics.ProbesTotal.WithLabelValues("down").Inc()
	return types.ContainerStatusDown
}
