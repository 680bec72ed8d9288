package reconcile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearops/shepherd/pkg/health"
	"github.com/bearops/shepherd/pkg/registry"
	"github.com/bearops/shepherd/pkg/runtime"
	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

// fakeRuntime serves a canned snapshot.
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

// fakeLister serves canned registry listings per app.
type fakeLister struct {
	entries map[string][]registry.ImageEntry
	err     error
}

func (f *fakeLister) ListImages(ctx context.Context, app string) ([]registry.ImageEntry, error) {
	if f.err != nil {
		return nil, f.err
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

func commit(t *testing.T, store *storage.BoltStore, fn func(*storage.Txn)) {
	t.Helper()
	txn := store.Begin()
	fn(txn)
	require.NoError(t, txn.Commit())
}

func testReconciler(lister ImageLister) *Reconciler {
	prober := health.NewProber(health.Policy{
		Attempts: 1,
		Timeout:  time.Second,
		Pause:    time.Millisecond,
	})
	return New("bear", lister, prober, nil)
}

func TestSyncHostDiff(t *testing.T) {
	store := newTestStore(t)
	host := &types.Host{Hostname: "node-1", Port: 2376}
	require.NoError(t, store.PutHost(host))

	// c1 is known and will be updated, c2 is stale and will be removed.
	commit(t, store, func(txn *storage.Txn) {
		txn.PutContainer(&types.Container{ID: "c1", HostID: host.ID(), State: "created"})
		txn.PutContainer(&types.Container{ID: "c2", HostID: host.ID(), State: "running"})
	})

	rt := &fakeRuntime{snapshot: []runtime.ContainerInfo{
		{ID: "c1", State: "running", ImageRef: "bear/billing:v1", StartedAt: "2026-08-20T10:30:00.000000000Z"},
		{ID: "c3", State: "running", ImageRef: "bear/billing:v1"},
	}}

	rec := testReconciler(&fakeLister{})
	txn := store.Begin()
	require.NoError(t, rec.SyncHost(context.Background(), txn, host, rt))
	require.NoError(t, txn.Commit())

	c1, err := store.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, "running", c1.State)
	assert.False(t, c1.StartedAt.IsZero())

	_, err = store.GetContainer("c2")
	assert.True(t, storage.IsNotFound(err))

	c3, err := store.GetContainer("c3")
	require.NoError(t, err)
	assert.Equal(t, host.ID(), c3.HostID)

	got, err := store.GetHost(host.ID())
	require.NoError(t, err)
	assert.Equal(t, types.HostStatusUp, got.Status)
}

func TestSyncHostIdempotent(t *testing.T) {
	store := newTestStore(t)
	host := &types.Host{Hostname: "node-1", Port: 2376}
	require.NoError(t, store.PutHost(host))

	rt := &fakeRuntime{snapshot: []runtime.ContainerInfo{
		{ID: "c1", State: "running", ImageRef: "bear/billing:v1"},
	}}
	rec := testReconciler(&fakeLister{})

	for i := 0; i < 3; i++ {
		txn := store.Begin()
		require.NoError(t, rec.SyncHost(context.Background(), txn, host, rt))
		require.NoError(t, txn.Commit())
	}

	containers, err := store.ListContainersByHost(host.ID())
	require.NoError(t, err)
	assert.Len(t, containers, 1)
}

func TestSyncHostSnapshotFailure(t *testing.T) {
	store := newTestStore(t)
	host := &types.Host{Hostname: "node-1", Port: 2376, Status: types.HostStatusUp}
	require.NoError(t, store.PutHost(host))
	commit(t, store, func(txn *storage.Txn) {
		txn.PutContainer(&types.Container{ID: "c1", HostID: host.ID(), State: "running"})
	})

	rt := &fakeRuntime{err: fmt.Errorf("connection refused")}
	rec := testReconciler(&fakeLister{})

	txn := store.Begin()
	require.NoError(t, rec.SyncHost(context.Background(), txn, host, rt))
	require.NoError(t, txn.Commit())

	// The host goes down; its containers are left exactly as they were.
	got, err := store.GetHost(host.ID())
	require.NoError(t, err)
	assert.Equal(t, types.HostStatusDown, got.Status)

	containers, err := store.ListContainersByHost(host.ID())
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "running", containers[0].State)
}

func TestSyncHostImageAssociation(t *testing.T) {
	store := newTestStore(t)
	host := &types.Host{Hostname: "node-1", Port: 2376}
	require.NoError(t, store.PutHost(host))
	commit(t, store, func(txn *storage.Txn) {
		txn.PutImage(&types.Image{ID: "aaaa1111", App: "billing", Tag: "v1"})
	})

	rt := &fakeRuntime{snapshot: []runtime.ContainerInfo{
		// Runtime image ids are longer than layer ids; the prefix matches.
		{ID: "c1", State: "running", ImageID: "aaaa1111ffffeeeeddddcccc", ImageRef: "bear/billing:v1"},
		// No persisted image with this prefix; stays unlinked.
		{ID: "c2", State: "running", ImageID: "9999888877776666", ImageRef: "bear/search:v1"},
	}}

	rec := testReconciler(&fakeLister{})
	txn := store.Begin()
	require.NoError(t, rec.SyncHost(context.Background(), txn, host, rt))
	require.NoError(t, txn.Commit())

	c1, err := store.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, "aaaa1111", c1.ImageID)

	c2, err := store.GetContainer("c2")
	require.NoError(t, err)
	assert.Empty(t, c2.ImageID)
}

func TestSyncImages(t *testing.T) {
	store := newTestStore(t)
	app := &types.App{Name: "billing"}
	require.NoError(t, store.PutApp(app))

	commit(t, store, func(txn *storage.Txn) {
		txn.PutImage(&types.Image{ID: "aaaa1111", App: "billing", Tag: "old"})
		txn.PutContainer(&types.Container{ID: "c1", ImageRef: "bear/billing:v2"})
	})

	lister := &fakeLister{entries: map[string][]registry.ImageEntry{
		"billing": {
			{Layer: "aaaa1111", Name: "v1"},
			{Layer: "bbbb2222", Name: "v2"},
		},
	}}

	rec := testReconciler(lister)
	txn := store.Begin()
	require.NoError(t, rec.SyncImages(context.Background(), txn, app))
	require.NoError(t, txn.Commit())

	// Known layer: tag overwritten in place.
	img, err := store.GetImage("aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "v1", img.Tag)

	// New layer: created.
	img, err = store.GetImage("bbbb2222")
	require.NoError(t, err)
	assert.Equal(t, "billing", img.App)

	// Container running the new tag is relinked to the layer.
	c1, err := store.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, "bbbb2222", c1.ImageID)

	images, err := store.ListImagesByApp("billing")
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func TestSyncImagesRegistryFailure(t *testing.T) {
	store := newTestStore(t)
	app := &types.App{Name: "billing"}

	rec := testReconciler(&fakeLister{err: fmt.Errorf("registry unreachable")})
	txn := store.Begin()
	err := rec.SyncImages(context.Background(), txn, app)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image sync for billing")
}

func TestUpdateDeploymentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	statusPort, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	store := newTestStore(t)
	host := &types.Host{Hostname: parsed.Hostname(), Port: 2376}
	require.NoError(t, store.PutHost(host))

	dep := &types.Deployment{
		AppName:        "billing",
		ImageTag:       "v1",
		Environment:    "prod",
		StatusPort:     statusPort,
		StatusEndpoint: "status",
		Hosts:          []string{host.ID()},
	}
	require.NoError(t, store.PutDeployment(dep))

	commit(t, store, func(txn *storage.Txn) {
		txn.PutContainer(&types.Container{ID: "c1", HostID: host.ID(), ImageRef: "bear/billing:v1", State: "running"})
		txn.PutContainer(&types.Container{ID: "c2", HostID: host.ID(), ImageRef: "bear/billing:v1", State: "exited"})
		txn.PutContainer(&types.Container{ID: "c3", HostID: "gone:2376", ImageRef: "bear/billing:v1", State: "running"})
	})

	rec := testReconciler(&fakeLister{})
	txn := store.Begin()
	containers, err := rec.LinkDeployment(txn, dep)
	require.NoError(t, err)
	assert.Len(t, containers, 3)

	require.NoError(t, rec.UpdateDeploymentStatus(context.Background(), txn, dep, containers))
	require.NoError(t, txn.Commit())

	c1, err := store.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, types.ContainerStatusUp, c1.Status)

	// Not running: down without a probe.
	c2, err := store.GetContainer("c2")
	require.NoError(t, err)
	assert.Equal(t, types.ContainerStatusDown, c2.Status)

	// Unknown host: down.
	c3, err := store.GetContainer("c3")
	require.NoError(t, err)
	assert.Equal(t, types.ContainerStatusDown, c3.Status)
}

func TestParseRuntimeTime(t *testing.T) {
	assert.True(t, parseRuntimeTime("").IsZero())
	assert.True(t, parseRuntimeTime("0001-01-01T00:00:00Z").IsZero())
	assert.True(t, parseRuntimeTime("not a time").IsZero())

	got := parseRuntimeTime("2026-08-20T10:30:00.123456789Z")
	require.False(t, got.IsZero())
	assert.Equal(t, time.Local, got.Location())
	want := time.Date(2026, 8, 20, 10, 30, 0, 123456789, time.UTC)
	assert.True(t, got.Equal(want))
}
