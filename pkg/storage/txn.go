package storage

import (
	"fmt"

	"github.com/bearops/shepherd/pkg/types"
)

// Batch is the set of mutations a Txn stages. Apply writes the whole batch
// in one underlying transaction.
type Batch struct {
	Apps              []*types.App
	Hosts             []*types.Host
	Images            []*types.Image
	Deployments       []*types.Deployment
	Containers        []*types.Container
	DeletedContainers []string
}

func (b *Batch) empty() bool {
	return len(b.Apps) == 0 && len(b.Hosts) == 0 && len(b.Images) == 0 &&
		len(b.Deployments) == 0 && len(b.Containers) == 0 &&
		len(b.DeletedContainers) == 0
}

// Txn is a staged unit of work. Puts and deletes accumulate in memory and
// hit the store only on Commit, all at once; Rollback discards them. Get
// reads see this Txn's staged writes layered over committed state, so a
// unit observes its own mutations. List reads see committed state only.
//
// Each unit of work in a pass (one app sync, one deployment sync, one host
// sync, one launcher run) owns its own Txn, so a failed unit rolls back
// without touching its neighbours.
type Txn struct {
	store Store

	apps        map[string]*types.App
	hosts       map[string]*types.Host
	images      map[string]*types.Image
	deployments map[string]*types.Deployment
	containers  map[string]*types.Container
	deleted     map[string]bool

	done bool
}

func newTxn(store Store) *Txn {
	return &Txn{
		store:       store,
		apps:        make(map[string]*types.App),
		hosts:       make(map[string]*types.Host),
		images:      make(map[string]*types.Image),
		deployments: make(map[string]*types.Deployment),
		containers:  make(map[string]*types.Container),
		deleted:     make(map[string]bool),
	}
}

// Put operations stage upserts.

func (t *Txn) PutApp(app *types.App)               { t.apps[app.Name] = app }
func (t *Txn) PutHost(host *types.Host)            { t.hosts[host.ID()] = host }
func (t *Txn) PutImage(image *types.Image)         { t.images[image.ID] = image }
func (t *Txn) PutDeployment(dep *types.Deployment) { t.deployments[dep.ID()] = dep }

func (t *Txn) PutContainer(container *types.Container) {
	delete(t.deleted, container.ID)
	t.containers[container.ID] = container
}

// DeleteContainer stages a container removal.
func (t *Txn) DeleteContainer(id string) {
	delete(t.containers, id)
	t.deleted[id] = true
}

// Get operations read through the staged overlay.

func (t *Txn) GetApp(name string) (*types.App, error) {
	if app, ok := t.apps[name]; ok {
		return app, nil
	}
	return t.store.GetApp(name)
}

func (t *Txn) GetHost(id string) (*types.Host, error) {
	if host, ok := t.hosts[id]; ok {
		return host, nil
	}
	return t.store.GetHost(id)
}

func (t *Txn) GetImage(id string) (*types.Image, error) {
	if image, ok := t.images[id]; ok {
		return image, nil
	}
	return t.store.GetImage(id)
}

func (t *Txn) GetDeployment(id string) (*types.Deployment, error) {
	if dep, ok := t.deployments[id]; ok {
		return dep, nil
	}
	return t.store.GetDeployment(id)
}

func (t *Txn) GetContainer(id string) (*types.Container, error) {
	if t.deleted[id] {
		return nil, fmt.Errorf("container %s: %w", id, ErrNotFound)
	}
	if container, ok := t.containers[id]; ok {
		return container, nil
	}
	return t.store.GetContainer(id)
}

// List operations delegate to committed state.

func (t *Txn) ListContainersByHost(hostID string) ([]*types.Container, error) {
	return t.store.ListContainersByHost(hostID)
}

func (t *Txn) ListContainersByImageRef(ref string) ([]*types.Container, error) {
	return t.store.ListContainersByImageRef(ref)
}

func (t *Txn) ListImagesByApp(app string) ([]*types.Image, error) {
	return t.store.ListImagesByApp(app)
}

// Commit applies all staged mutations atomically. The Txn is unusable
// afterwards.
func (t *Txn) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.done = true

	batch := &Batch{}
	for _, app := range t.apps {
		batch.Apps = append(batch.Apps, app)
	}
	for _, host := range t.hosts {
		batch.Hosts = append(batch.Hosts, host)
	}
	for _, image := range t.images {
		batch.Images = append(batch.Images, image)
	}
	for _, dep := range t.deployments {
		batch.Deployments = append(batch.Deployments, dep)
	}
	for _, container := range t.containers {
		batch.Containers = append(batch.Containers, container)
	}
	for id := range t.deleted {
		batch.DeletedContainers = append(batch.DeletedContainers, id)
	}

	if batch.empty() {
		return nil
	}
	return t.store.Apply(batch)
}

// Rollback discards all staged mutations. Safe to call after Commit, so it
// can sit in a defer.
func (t *Txn) Rollback() {
	t.done = true
	t.apps = nil
	t.hosts = nil
	t.images = nil
	t.deployments = nil
	t.containers = nil
	t.deleted = nil
}
