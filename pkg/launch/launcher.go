package launch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bearops/shepherd/pkg/config"
	"github.com/bearops/shepherd/pkg/events"
	"github.com/bearops/shepherd/pkg/log"
	"github.com/bearops/shepherd/pkg/metrics"
	"github.com/bearops/shepherd/pkg/reconcile"
	"github.com/bearops/shepherd/pkg/runtime"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

// Launcher rolls a deployment out to its target hosts on a fixed-size
// worker pool. Launch returns a pollable handle immediately; the job runs
// in the background with its own storage unit of work per step.
type Launcher struct {
	store  storage.Store
	dial   runtime.Dialer
	rec    *reconcile.Reconciler
	broker *events.Broker
	user   string

	jobs    chan *job
	workers int

	mu      sync.Mutex
	handles map[string]*Handle

	wg     sync.WaitGroup
	stopCh chan struct{}
}

type job struct {
	handle       *Handle
	deploymentID string
}

// NewLauncher creates a launcher. broker may be nil.
func NewLauncher(store storage.Store, dial runtime.Dialer, rec *reconcile.Reconciler,
	broker *events.Broker, user string, cfg config.LauncherConfig) *Launcher {
	return &Launcher{
		store:   store,
		dial:    dial,
		rec:     rec,
		broker:  broker,
		user:    user,
		jobs:    make(chan *job, cfg.Queue),
		workers: cfg.Workers,
		handles: make(map[string]*Handle),
		stopCh:  make(chan struct{}),
	}
}

// Start spins up the worker pool.
func (l *Launcher) Start() {
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.run()
	}
}

// Stop stops accepting work and waits for in-flight launches to finish.
// Started launches always run to completion; there is no abort.
func (l *Launcher) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

// Launch queues a rollout of the deployment and returns its handle. The
// call fails only when the deployment is unknown or the queue is full.
func (l *Launcher) Launch(deploymentID string) (*Handle, error) {
	dep, err := l.store.GetDeployment(deploymentID)
	if err != nil {
		return nil, err
	}

	handle := newHandle(uuid.NewString(), dep.Name())
	l.mu.Lock()
	l.handles[handle.ID()] = handle
	l.mu.Unlock()

	select {
	case l.jobs <- &job{handle: handle, deploymentID: deploymentID}:
		return handle, nil
	default:
		l.mu.Lock()
		delete(l.handles, handle.ID())
		l.mu.Unlock()
		return nil, fmt.Errorf("launch queue full")
	}
}

// Get returns the handle for a previously queued launch.
func (l *Launcher) Get(id string) (*Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	handle, ok := l.handles[id]
	return handle, ok
}

func (l *Launcher) run() {
	defer l.wg.Done()
	for {
		select {
		case job := <-l.jobs:
			l.execute(job)
		case <-l.stopCh:
			return
		}
	}
}

func (l *Launcher) execute(job *job) {
	// Launches run to completion once started; no cancellation path.
	ctx := context.Background()

	job.handle.setState(StateRunning)
	err := l.launch(ctx, job)
	job.handle.finish(err)

	if err != nil {
		metrics.LaunchesTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.LaunchesTotal.WithLabelValues("complete").Inc()
	}
}

func (l *Launcher) launch(ctx context.Context, job *job) error {
	dep, err := l.store.GetDeployment(job.deploymentID)
	if err != nil {
		return fmt.Errorf("deployment lookup: %w", err)
	}
	logger := log.WithDeployment(dep.Name())

	// Serialize the deployment and its dependency closure once; every host
	// receives the same encoded plan.
	plan, err := l.BuildPlan(dep)
	if err != nil {
		return fmt.Errorf("plan build for %s: %w", dep.Name(), err)
	}
	encoded, err := plan.Encode()
	if err != nil {
		return fmt.Errorf("plan encode for %s: %w", dep.Name(), err)
	}

	logger.Info().Msg("launching deployment")
	failures := 0
	for _, hostID := range dep.Hosts {
		result := HostResult{HostID: hostID}
		if err := l.launchOnHost(ctx, hostID, encoded); err != nil {
			logger.Error().Err(err).Str("host", hostID).Msg("launch failed on host")
			metrics.LaunchHostFailures.Inc()
			result.Error = err.Error()
			failures++
		} else {
			logger.Info().Str("host", hostID).Msg("launched on host")
		}
		job.handle.addHostResult(result)
	}

	// Capture the immediate post-launch state: reconcile the target hosts,
	// then relink and probe. Each step isolates its own failure.
	l.syncAfterLaunch(ctx, dep)

	if l.broker != nil {
		l.broker.Publish(&events.Event{
			Type:    events.EventDeploymentLaunched,
			Message: fmt.Sprintf("deployment %s launched", dep.Name()),
			Metadata: map[string]string{
				"deployment": dep.Name(),
				"hosts":      fmt.Sprintf("%d", len(dep.Hosts)),
				"failures":   fmt.Sprintf("%d", failures),
			},
		})
	}
	logger.Info().Int("hosts", len(dep.Hosts)).Int("failures", failures).
		Msg("finished deployment")

	if len(dep.Hosts) > 0 && failures == len(dep.Hosts) {
		return fmt.Errorf("launch failed on all %d hosts", len(dep.Hosts))
	}
	return nil
}

func (l *Launcher) launchOnHost(ctx context.Context, hostID string, encoded []byte) error {
	host, err := l.store.GetHost(hostID)
	if err != nil {
		return fmt.Errorf("host lookup: %w", err)
	}

	rt, err := l.dial.Dial(host)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Deploy(ctx, encoded)
}

// syncAfterLaunch reconciles each target host and refreshes the
// deployment's container statuses. Failures here are logged and isolated;
// the next full pass self-corrects anything missed.
func (l *Launcher) syncAfterLaunch(ctx context.Context, dep *types.Deployment) {
	logger := log.WithDeployment(dep.Name())

	for _, hostID := range dep.Hosts {
		host, err := l.store.GetHost(hostID)
		if err != nil {
			logger.Warn().Err(err).Str("host", hostID).Msg("post-launch host lookup failed")
			continue
		}
		rt, err := l.dial.Dial(host)
		if err != nil {
			logger.Warn().Err(err).Str("host", hostID).Msg("post-launch dial failed")
			continue
		}

		txn := l.store.Begin()
		if err := l.rec.SyncHost(ctx, txn, host, rt); err != nil {
			logger.Error().Err(err).Str("host", hostID).Msg("post-launch reconcile failed")
			txn.Rollback()
		} else if err := txn.Commit(); err != nil {
			logger.Error().Err(err).Str("host", hostID).Msg("post-launch commit failed")
		}
		rt.Close()
	}

	txn := l.store.Begin()
	containers, err := l.rec.LinkDeployment(txn, dep)
	if err == nil {
		err = l.rec.UpdateDeploymentStatus(ctx, txn, dep, containers)
	}
	if err != nil {
		logger.Error().Err(err).Msg("post-launch status update failed")
		txn.Rollback()
		return
	}
	if err := txn.Commit(); err != nil {
		logger.Error().Err(err).Msg("post-launch status commit failed")
	}
}

// BuildPlan serializes a deployment and its transitive dependencies into a
// launch plan. Dependencies come first, deepest first, each exactly once.
func (l *Launcher) BuildPlan(dep *types.Deployment) (*runtime.Plan, error) {
	visited := map[string]bool{dep.ID(): true}

	var deps []runtime.LaunchSpec
	var walk func(ids []string) error
	walk = func(ids []string) error {
		for _, id := range ids {
			if visited[id] {
				continue
			}
			visited[id] = true

			child, err := l.store.GetDeployment(id)
			if err != nil {
				return fmt.Errorf("dependency %s: %w", id, err)
			}
			if err := walk(child.DependsOn); err != nil {
				return err
			}
			deps = append(deps, l.specFor(child))
		}
		return nil
	}
	if err := walk(dep.DependsOn); err != nil {
		return nil, err
	}

	return &runtime.Plan{
		Deployment:   l.specFor(dep),
		Dependencies: deps,
	}, nil
}

func (l *Launcher) specFor(dep *types.Deployment) runtime.LaunchSpec {
	return runtime.LaunchSpec{
		Name:    containerName(dep),
		Image:   types.ImageRef(l.user, dep.AppName, dep.ImageTag),
		Ports:   dep.MappedPorts,
		Volumes: dep.MappedVolumes,
		Env:     dep.Env,
	}
}

// containerName flattens the deployment identity into a runtime-safe name.
func containerName(dep *types.Deployment) string {
	return strings.NewReplacer(":", "-", "/", "-").Replace(dep.ID())
}
