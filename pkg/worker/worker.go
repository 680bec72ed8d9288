package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bearops/shepherd/pkg/events"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/metrics"
	"github.com/bearops/shepherd/pkg/reconcile"
	"github.com/bearops/shepherd/pkg/runtime"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

// Worker drives full reconciliation passes over the fleet: images and
// deployment statuses for every app, then container state for every host.
// Each unit of work gets its own transaction and its own failure boundary;
// one bad app or host never stops the sweep.
type Worker struct {
	store  storage.Store
	dial   runtime.Dialer
	rec    *reconcile.Reconciler
	broker *events.Broker

	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// New creates a worker. broker may be nil.
func New(store storage.Store, dial runtime.Dialer, rec *reconcile.Reconciler,
	broker *events.Broker, interval time.Duration) *Worker {
	return &Worker{
		store:    store,
		dial:     dial,
		rec:      rec,
		broker:   broker,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic passes at the configured interval.
func (w *Worker) Start() {
	go w.run()
}

// Stop stops the periodic passes. An in-flight pass runs to completion.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First pass right away; the ticker covers the rest.
	w.SyncAll(context.Background())

	for {
		select {
		case <-ticker.C:
			w.SyncAll(context.Background())
		case <-w.stopCh:
			return
		}
	}
}

// SyncAll performs one full reconciliation pass and returns its report.
// The pass is stateless and complete: every app, every deployment, every
// host, on every invocation.
func (w *Worker) SyncAll(ctx context.Context) *Report {
	// One pass at a time per worker; concurrent launcher runs may still
	// race on the same rows, which reconciliation tolerates.
	w.mu.Lock()
	defer w.mu.Unlock()

	logger := log.WithComponent("worker")
	metrics.PassesTotal.Inc()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PassDuration)

	report := &Report{StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	// The outermost failure boundary: without the app list there is no
	// pass to run.
	apps, err := w.store.ListApps()
	if err != nil {
		logger.Error().Err(err).Msg("pass aborted, cannot list apps")
		report.Fatal = err.Error()
		return report
	}

	for _, app := range apps {
		logger.Info().Str("app", app.Name).Msg("updating image and deployment information")
		w.runUnit(report, UnitApp, app.Name, func(txn *storage.Txn) error {
			return w.rec.SyncImages(ctx, txn, app)
		})

		deployments, err := w.store.ListDeploymentsByApp(app.Name)
		if err != nil {
			report.add(UnitApp, app.Name+" deployments", err, time.Now())
			logger.Error().Err(err).Str("app", app.Name).Msg("cannot list deployments")
			continue
		}
		for _, dep := range deployments {
			w.runUnit(report, UnitDeployment, dep.Name(), func(txn *storage.Txn) error {
				return w.syncDeployment(ctx, txn, dep)
			})
		}
	}

	logger.Info().Msg("updating container information")
	hosts, err := w.store.ListHosts()
	if err != nil {
		logger.Error().Err(err).Msg("pass aborted, cannot list hosts")
		report.Fatal = err.Error()
		return report
	}
	for _, host := range hosts {
		w.runUnit(report, UnitHost, host.ID(), func(txn *storage.Txn) error {
			return w.syncHost(ctx, txn, host)
		})
	}

	w.observeHosts()

	if w.broker != nil {
		w.broker.Publish(&events.Event{
			Type:    events.EventPassCompleted,
			Message: "reconciliation pass completed",
			Metadata: map[string]string{
				"units":    fmt.Sprintf("%d", len(report.Units)),
				"failures": fmt.Sprintf("%d", len(report.Failures())),
			},
		})
	}
	return report
}

// runUnit wraps one unit of work in its own transaction: commit on
// success, rollback and record on failure, keep going either way.
func (w *Worker) runUnit(report *Report, kind UnitKind, name string, fn func(*storage.Txn) error) {
	start := time.Now()

	logger := log.WithComponent("worker")
	txn := w.store.Begin()
	err := fn(txn)
	if err != nil {
		txn.Rollback()
		logger.Error().Err(err).
			Str("kind", string(kind)).Str("unit", name).Msg("unit failed, rolled back")
	} else if err = txn.Commit(); err != nil {
		logger.Error().Err(err).
			Str("kind", string(kind)).Str("unit", name).Msg("unit commit failed")
	}

	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.UnitsTotal.WithLabelValues(string(kind), result).Inc()
	report.add(kind, name, err, start)
}

func (w *Worker) syncDeployment(ctx context.Context, txn *storage.Txn, dep *types.Deployment) error {
	containers, err := w.rec.LinkDeployment(txn, dep)
	if err != nil {
		return err
	}
	return w.rec.UpdateDeploymentStatus(ctx, txn, dep, containers)
}

func (w *Worker) syncHost(ctx context.Context, txn *storage.Txn, host *types.Host) error {
	rt, err := w.dial.Dial(host)
	if err != nil {
		return fmt.Errorf("dial %s: %w", host.ID(), err)
	}
	defer rt.Close()

	return w.rec.SyncHost(ctx, txn, host, rt)
}

// observeHosts refreshes the hosts-by-status gauge from committed state.
func (w *Worker) observeHosts() {
	hosts, err := w.store.ListHosts()
	if err != nil {
		return
	}

	counts := map[types.HostStatus]int{}
	for _, host := range hosts {
		status := host.Status
		if status == "" {
			status = types.HostStatusUnknown
		}
		counts[status]++
	}
	for _, status := range []types.HostStatus{types.HostStatusUp, types.HostStatusDown, types.HostStatusUnknown} {
		metrics.HostsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
