package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bearops/shepherd/pkg/events"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

// SyncImages merges the registry's current image list for an app into
// persisted state. Images are keyed by layer id, so re-syncing a known
// layer overwrites its tag in place. Any persisted container whose image
// reference matches the app+tag is relinked to the image.
//
// A registry failure propagates so the caller can roll back just this
// app's unit and move on.
func (r *Reconciler) SyncImages(ctx context.Context, txn *storage.Txn, app *types.App) error {
	logger := log.WithApp(app.Name)
	logger.Info().Str("user", r.user).Msg("fetching images from registry")

	entries, err := r.images.ListImages(ctx, app.Name)
	if err != nil {
		return fmt.Errorf("image sync for %s: %w", app.Name, err)
	}

	for _, entry := range entries {
		image, err := txn.GetImage(entry.Layer)
		if err != nil {
			if !storage.IsNotFound(err) {
				return err
			}
			logger.Info().Str("layer", entry.Layer).Str("tag", entry.Name).
				Msg("found new image")
			image = &types.Image{ID: entry.Layer, App: app.Name}
		} else {
			logger.Info().Str("layer", entry.Layer).Str("tag", entry.Name).
				Msg("updating existing image tag")
		}
		image.Tag = entry.Name
		image.App = app.Name

		if err := r.relinkContainers(txn, app.Name, image, logger); err != nil {
			return err
		}

		txn.PutImage(image)
		r.publish(events.EventImageSynced, fmt.Sprintf("image %s:%s for %s", entry.Layer, entry.Name, app.Name),
			map[string]string{"app": app.Name, "layer": entry.Layer, "tag": entry.Name})
	}
	return nil
}

// relinkContainers points every container running this app+tag at the
// image. The containers were usually created before the layer was known,
// so this is where the back-reference catches up.
func (r *Reconciler) relinkContainers(txn *storage.Txn, app string, image *types.Image, logger zerolog.Logger) error {
	ref := types.ImageRef(r.user, app, image.Tag)
	containers, err := txn.ListContainersByImageRef(ref)
	if err != nil {
		return err
	}

	for _, container := range containers {
		if container.ImageID == image.ID {
			continue
		}
		logger.Info().Str("container", container.ID).Str("layer", image.ID).
			Str("state", container.State).Msg("linking container to image")
		container.ImageID = image.ID
		txn.PutContainer(container)
	}
	return nil
}
