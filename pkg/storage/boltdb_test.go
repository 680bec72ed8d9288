package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearops/shepherd/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seed commits entities through a throwaway transaction. Images and
// containers have no direct Put on the store; all their writes go through
// a Txn.
func seed(t *testing.T, store *BoltStore, fn func(*Txn)) {
	t.Helper()
	txn := store.Begin()
	fn(txn)
	require.NoError(t, txn.Commit())
}

func TestAppRoundTrip(t *testing.T) {
	store := newTestStore(t)

	app := &types.App{Name: "billing", CreatedAt: time.Now()}
	require.NoError(t, store.PutApp(app))

	got, err := store.GetApp("billing")
	require.NoError(t, err)
	assert.Equal(t, "billing", got.Name)

	_, err = store.GetApp("missing")
	assert.True(t, IsNotFound(err))
}

func TestHostRoundTrip(t *testing.T) {
	store := newTestStore(t)

	host := &types.Host{Hostname: "node-1", Port: 2376, Alias: "node1", Status: types.HostStatusUp}
	require.NoError(t, store.PutHost(host))

	got, err := store.GetHost("node-1:2376")
	require.NoError(t, err)
	assert.Equal(t, types.HostStatusUp, got.Status)
	assert.Equal(t, "node1", got.Alias)
}

func TestImageQueries(t *testing.T) {
	store := newTestStore(t)

	seed(t, store, func(txn *Txn) {
		txn.PutImage(&types.Image{ID: "aaaa1111", App: "billing", Tag: "v1"})
		txn.PutImage(&types.Image{ID: "bbbb2222", App: "billing", Tag: "v2"})
		txn.PutImage(&types.Image{ID: "cccc3333", App: "search", Tag: "v1"})
	})

	images, err := store.ListImagesByApp("billing")
	require.NoError(t, err)
	assert.Len(t, images, 2)

	// Re-putting the same layer updates in place, never duplicates.
	seed(t, store, func(txn *Txn) {
		txn.PutImage(&types.Image{ID: "aaaa1111", App: "billing", Tag: "v3"})
	})
	images, err = store.ListImagesByApp("billing")
	require.NoError(t, err)
	assert.Len(t, images, 2)

	got, err := store.GetImage("aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "v3", got.Tag)
}

func TestContainerQueries(t *testing.T) {
	store := newTestStore(t)

	seed(t, store, func(txn *Txn) {
		txn.PutContainer(&types.Container{ID: "c1", HostID: "node-1:2376", ImageRef: "bear/billing:v1"})
		txn.PutContainer(&types.Container{ID: "c2", HostID: "node-1:2376", ImageRef: "bear/search:v1"})
		txn.PutContainer(&types.Container{ID: "c3", HostID: "node-2:2376", ImageRef: "bear/billing:v1"})
	})

	byHost, err := store.ListContainersByHost("node-1:2376")
	require.NoError(t, err)
	assert.Len(t, byHost, 2)

	byRef, err := store.ListContainersByImageRef("bear/billing:v1")
	require.NoError(t, err)
	assert.Len(t, byRef, 2)

	seed(t, store, func(txn *Txn) {
		txn.DeleteContainer("c1")
	})
	_, err = store.GetContainer("c1")
	assert.True(t, IsNotFound(err))
}

func TestDeploymentQueries(t *testing.T) {
	store := newTestStore(t)

	dep := &types.Deployment{
		AppName:     "billing",
		ImageTag:    "v1",
		Environment: "prod",
		Hosts:       []string{"node-1:2376"},
	}
	require.NoError(t, store.PutDeployment(dep))

	got, err := store.GetDeployment("billing:v1:prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1:2376"}, got.Hosts)

	byApp, err := store.ListDeploymentsByApp("billing")
	require.NoError(t, err)
	assert.Len(t, byApp, 1)
}

func TestTxnCommitVisibility(t *testing.T) {
	store := newTestStore(t)

	txn := store.Begin()
	txn.PutContainer(&types.Container{ID: "c1", HostID: "node-1:2376"})
	txn.PutHost(&types.Host{Hostname: "node-1", Port: 2376, Status: types.HostStatusUp})

	// Staged writes are visible inside the transaction...
	got, err := txn.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, "node-1:2376", got.HostID)

	// ...but not outside until commit.
	_, err = store.GetContainer("c1")
	assert.True(t, IsNotFound(err))

	require.NoError(t, txn.Commit())

	got, err = store.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, "node-1:2376", got.HostID)
	host, err := store.GetHost("node-1:2376")
	require.NoError(t, err)
	assert.Equal(t, types.HostStatusUp, host.Status)
}

func TestTxnRollbackDiscards(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, func(txn *Txn) {
		txn.PutContainer(&types.Container{ID: "c1", State: "running"})
	})

	txn := store.Begin()
	txn.PutContainer(&types.Container{ID: "c1", State: "exited"})
	txn.PutContainer(&types.Container{ID: "c2"})
	txn.Rollback()

	got, err := store.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, "running", got.State)
	_, err = store.GetContainer("c2")
	assert.True(t, IsNotFound(err))
}

func TestTxnStagedDelete(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, func(txn *Txn) {
		txn.PutContainer(&types.Container{ID: "c1"})
	})

	txn := store.Begin()
	txn.DeleteContainer("c1")

	// The staged delete shadows committed state.
	_, err := txn.GetContainer("c1")
	assert.True(t, IsNotFound(err))

	// Putting the container back cancels the delete.
	txn.PutContainer(&types.Container{ID: "c1", State: "running"})
	require.NoError(t, txn.Commit())

	got, err := store.GetContainer("c1")
	require.NoError(t, err)
	assert.Equal(t, "running", got.State)
}

func TestTxnCommitTwice(t *testing.T) {
	store := newTestStore(t)

	txn := store.Begin()
	require.NoError(t, txn.Commit())
	assert.Error(t, txn.Commit())
}
