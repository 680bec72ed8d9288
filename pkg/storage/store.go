package storage

import (
	"errors"

	"github.com/bearops/shepherd/pkg/types"
)

// ErrNotFound is wrapped by all lookup misses so callers can distinguish a
// missing row from a storage failure.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store defines the persistence gateway over the entity graph. Reads see
// committed state; mutations go through a Txn (see Begin) or, for
// operator-driven CRUD, the direct Put/Delete methods.
type Store interface {
	// Apps
	GetApp(name string) (*types.App, error)
	ListApps() ([]*types.App, error)
	PutApp(app *types.App) error
	DeleteApp(name string) error

	// Hosts
	GetHost(id string) (*types.Host, error)
	ListHosts() ([]*types.Host, error)
	PutHost(host *types.Host) error
	DeleteHost(id string) error

	// Images
	GetImage(id string) (*types.Image, error)
	ListImages() ([]*types.Image, error)
	ListImagesByApp(app string) ([]*types.Image, error)

	// Deployments
	GetDeployment(id string) (*types.Deployment, error)
	ListDeployments() ([]*types.Deployment, error)
	ListDeploymentsByApp(app string) ([]*types.Deployment, error)
	PutDeployment(dep *types.Deployment) error
	DeleteDeployment(id string) error

	// Containers
	GetContainer(id string) (*types.Container, error)
	ListContainers() ([]*types.Container, error)
	ListContainersByHost(hostID string) ([]*types.Container, error)
	ListContainersByImageRef(ref string) ([]*types.Container, error)

	// Begin opens a unit of work. Staged mutations become visible to other
	// readers only after Commit, which applies them atomically.
	Begin() *Txn

	// Apply atomically applies a batch of staged mutations. Used by Txn.
	Apply(batch *Batch) error

	// Close releases the underlying database.
	Close() error
}
