package worker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearops/shepherd/pkg/health"
	"github.com/bearops/shepherd/pkg/reconcile"
	"github.com/bearops/shepherd/pkg/registry"
	"github.com/bearops/shepherd/pkg/runtime"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

type fakeRuntime struct {
	snapshot []runtime.ContainerInfo
	err      error
}

func (f *fakeRuntime) Snapshot(ctx context.Context) ([]runtime.ContainerInfo, error) {
	return f.snapshot, f.err
}
func (f *fakeRuntime) CreateAndStart(ctx context.Context, spec runtime.LaunchSpec) (string, error) {
	return "", nil
}
func (f *fakeRuntime) Stop(ctx context.Context, id string) error   { return nil }
func (f *fakeRuntime) Remove(ctx context.Context, id string) error { return nil }
func (f *fakeRuntime) Logs(ctx context.Context, id string, tail int) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeRuntime) Deploy(ctx context.Context, encoded []byte) error { return nil }
func (f *fakeRuntime) Close() error                                     { return nil }

// fakeDialer hands out per-host fake runtimes, or refuses to dial.
type fakeDialer struct {
	mu       sync.Mutex
	runtimes map[string]*fakeRuntime
	dialErr  map[string]error
}

func (f *fakeDialer) Dial(host *types.Host) (runtime.Runtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.dialErr[host.ID()]; err != nil {
		return nil, err
	}
	if rt, ok := f.runtimes[host.ID()]; ok {
		return rt, nil
	}
	return &fakeRuntime{}, nil
}

type fakeLister struct {
	entries map[string][]registry.ImageEntry
	errOn   map[string]error
}

func (f *fakeLister) ListImages(ctx context.Context, app string) ([]registry.ImageEntry, error) {
	if err := f.errOn[app]; err != nil {
		return nil, err
	}
	return f.entries[app], nil
}

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testReconciler(lister reconcile.ImageLister) *reconcile.Reconciler {
	prober := health.NewProber(health.Policy{Attempts: 1, Timeout: time.Second, Pause: time.Millisecond})
	return reconcile.New("bear", lister, prober, nil)
}

func unitByName(report *Report, name string) *UnitResult {
	for i := range report.Units {
		if report.Units[i].Name == name {
			return &report.Units[i]
		}
	}
	return nil
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutApp(&types.App{Name: "billing"}))
	require.NoError(t, store.PutApp(&types.App{Name: "search"}))

	good := &types.Host{Hostname: "node-1", Port: 2376}
	bad := &types.Host{Hostname: "node-2", Port: 2376}
	require.NoError(t, store.PutHost(good))
	require.NoError(t, store.PutHost(bad))

	lister := &fakeLister{
		entries: map[string][]registry.ImageEntry{
			"search": {{Layer: "cccc3333", Name: "v1"}},
		},
		errOn: map[string]error{
			"billing": fmt.Errorf("registry unreachable"),
		},
	}
	dialer := &fakeDialer{
		runtimes: map[string]*fakeRuntime{
			good.ID(): {snapshot: []runtime.ContainerInfo{
				{ID: "c1", State: "running", ImageRef: "bear/search:v1"},
			}},
		},
		dialErr: map[string]error{
			bad.ID(): fmt.Errorf("connection refused"),
		},
	}

	w := New(store, dialer, testReconciler(lister), nil, time.Hour)
	report := w.SyncAll(context.Background())

	assert.Empty(t, report.Fatal)
	assert.False(t, report.OK())
	assert.Len(t, report.Failures(), 2)

	// billing's registry failure is contained in its unit.
	unit := unitByName(report, "billing")
	require.NotNil(t, unit)
	assert.True(t, unit.Failed())
	assert.Contains(t, unit.Error, "registry unreachable")

	// search synced regardless.
	unit = unitByName(report, "search")
	require.NotNil(t, unit)
	assert.False(t, unit.Failed())
	img, err := store.GetImage("cccc3333")
	require.NoError(t, err)
	assert.Equal(t, "search", img.App)

	// node-1 reconciled even though node-2 cannot be dialed.
	unit = unitByName(report, good.ID())
	require.NotNil(t, unit)
	assert.False(t, unit.Failed())
	_, err = store.GetContainer("c1")
	require.NoError(t, err)

	unit = unitByName(report, bad.ID())
	require.NotNil(t, unit)
	assert.True(t, unit.Failed())
	assert.Contains(t, unit.Error, "connection refused")
}

func TestSyncAllDeploymentUnits(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutApp(&types.App{Name: "billing"}))
	dep := &types.Deployment{AppName: "billing", ImageTag: "v1", Environment: "prod"}
	require.NoError(t, store.PutDeployment(dep))

	w := New(store, &fakeDialer{}, testReconciler(&fakeLister{}), nil, time.Hour)
	report := w.SyncAll(context.Background())

	unit := unitByName(report, dep.Name())
	require.NotNil(t, unit)
	assert.Equal(t, UnitDeployment, unit.Kind)
	assert.False(t, unit.Failed())
}

// listAppsFailing wraps a real store with a broken app listing.
type listAppsFailing struct {
	*storage.BoltStore
}

func (s *listAppsFailing) ListApps() ([]*types.App, error) {
	return nil, fmt.Errorf("database corrupted")
}

func TestSyncAllFatal(t *testing.T) {
	store := newTestStore(t)

	w := New(&listAppsFailing{store}, &fakeDialer{}, testReconciler(&fakeLister{}), nil, time.Hour)
	report := w.SyncAll(context.Background())

	assert.Contains(t, report.Fatal, "database corrupted")
	assert.Empty(t, report.Units)
	assert.False(t, report.OK())
}

func TestReport(t *testing.T) {
	report := &Report{StartedAt: time.Now()}
	assert.True(t, report.OK())

	report.add(UnitApp, "billing", nil, time.Now())
	assert.True(t, report.OK())

	report.add(UnitHost, "node-1:2376", fmt.Errorf("boom"), time.Now())
	assert.False(t, report.OK())
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, "node-1:2376", report.Failures()[0].Name)
}
