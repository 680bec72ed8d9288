package reconcile

import (
	"context"
	"time"

	"github.com/bearops/shepherd/pkg/events"
	"github.com/bearops/shepherd/pkg/health"
	"github.com/bearops/shepherd/pkg/registry"
)

// ImageLister is the slice of the registry client the reconciler needs.
type ImageLister interface {
	ListImages(ctx context.Context, app string) ([]registry.ImageEntry, error)
}

// Reconciler holds the collaborators shared by all reconciliation steps:
// the registry namespace (image references are user/app:tag), the registry
// client, the health prober, and an optional event broker.
type Reconciler struct {
	user   string
	images ImageLister
	prober *health.Prober
	broker *events.Broker
}

// New creates a reconciler. broker may be nil.
func New(user string, images ImageLister, prober *health.Prober, broker *events.Broker) *Reconciler {
	return &Reconciler{
		user:   user,
		images: images,
		prober: prober,
		broker: broker,
	}
}

func (r *Reconciler) publish(eventType events.EventType, message string, metadata map[string]string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Type:     eventType,
		Message:  message,
		Metadata: metadata,
	})
}

// parseRuntimeTime normalizes a runtime-reported ISO-8601 timestamp to
// local wall-clock time. Unset and zero docker timestamps come back as the
// zero time.
func parseRuntimeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() {
		return time.Time{}
	}
	return t.In(time.Local)
}

// runningState is the only runtime state worth probing; everything else is
// down without a network call.
const runningState = "running"
