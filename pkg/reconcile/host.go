package reconcile

import (
	"context"
	"fmt"

	"github.com/bearops/shepherd/pkg/events"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/metrics"
	"github.com/bearops/shepherd/pkg/runtime"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

// layerIDLen is the length of a registry layer id. New containers are
// linked to an image by truncating the runtime's image id to this prefix;
// the association is best-effort and a miss leaves the container unlinked.
const layerIDLen = 8

// SyncHost makes the persisted containers of one host exactly match a fresh
// runtime snapshot: unseen ids are created, known ids updated in place, and
// ids missing from the snapshot deleted. If the snapshot itself cannot be
// fetched the host is marked down and its containers are left untouched.
//
// Re-running against an unchanged snapshot produces the same persisted
// state, so a pass racing another writer self-corrects next time around.
func (r *Reconciler) SyncHost(ctx context.Context, txn *storage.Txn, host *types.Host, rt runtime.Runtime) error {
	logger := log.WithHost(host.ID())

	snapshot, err := rt.Snapshot(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("snapshot failed, marking host down")
		host.Status = types.HostStatusDown
		txn.PutHost(host)
		r.publish(events.EventHostDown, fmt.Sprintf("host %s unreachable", host.ID()),
			map[string]string{"host": host.ID()})
		return nil
	}

	previous, err := txn.ListContainersByHost(host.ID())
	if err != nil {
		return fmt.Errorf("failed to list containers for %s: %w", host.ID(), err)
	}
	previousByID := make(map[string]*types.Container, len(previous))
	for _, container := range previous {
		previousByID[container.ID] = container
	}

	seen := make(map[string]bool, len(snapshot))
	for _, info := range snapshot {
		seen[info.ID] = true

		if container, ok := previousByID[info.ID]; ok {
			logger.Info().Str("container", info.ID).Str("state", info.State).
				Msg("updating existing container")
			container.State = info.State
			container.ImageRef = info.ImageRef
			container.Command = info.Command
			container.StartedAt = parseRuntimeTime(info.StartedAt)
			container.FinishedAt = parseRuntimeTime(info.FinishedAt)
			txn.PutContainer(container)
			metrics.ContainerEventsTotal.WithLabelValues("updated").Inc()
			continue
		}

		logger.Info().Str("container", info.ID).Str("state", info.State).
			Msg("found new container")
		container := &types.Container{
			ID:         info.ID,
			HostID:     host.ID(),
			ImageRef:   info.ImageRef,
			State:      info.State,
			Command:    info.Command,
			StartedAt:  parseRuntimeTime(info.StartedAt),
			FinishedAt: parseRuntimeTime(info.FinishedAt),
		}
		if err := r.associateImage(txn, container, info.ImageID); err != nil {
			return err
		}
		txn.PutContainer(container)
		metrics.ContainerEventsTotal.WithLabelValues("created").Inc()
		r.publish(events.EventContainerCreated, fmt.Sprintf("container %s on %s", info.ID, host.ID()),
			map[string]string{"host": host.ID(), "container": info.ID})
	}

	for id := range previousByID {
		if seen[id] {
			continue
		}
		logger.Info().Str("container", id).Msg("container gone from host, removing")
		txn.DeleteContainer(id)
		metrics.ContainerEventsTotal.WithLabelValues("deleted").Inc()
		r.publish(events.EventContainerRemoved, fmt.Sprintf("container %s left %s", id, host.ID()),
			map[string]string{"host": host.ID(), "container": id})
	}

	host.Status = types.HostStatusUp
	txn.PutHost(host)
	return nil
}

// associateImage links a new container to a persisted image whose id equals
// the runtime image id truncated to the layer id length. No match is fine:
// the image sync may simply not have seen the layer yet.
func (r *Reconciler) associateImage(txn *storage.Txn, container *types.Container, imageID string) error {
	if len(imageID) < layerIDLen {
		return nil
	}
	image, err := txn.GetImage(imageID[:layerIDLen])
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}
	container.ImageID = image.ID
	return nil
}
