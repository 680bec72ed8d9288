package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/bearops/shepherd/pkg/types"
)

var (
	// Bucket names
	bucketApps        = []byte("apps")
	bucketHosts       = []byte("hosts")
	bucketImages      = []byte("images")
	bucketDeployments = []byte("deployments")
	bucketContainers  = []byte("containers")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the shepherd database in dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "shepherd.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketApps,
			bucketHosts,
			bucketImages,
			bucketDeployments,
			bucketContainers,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Begin opens a staged unit of work over this store.
func (s *BoltStore) Begin() *Txn {
	return newTxn(s)
}

func (s *BoltStore) put(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string, v interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// App operations

func (s *BoltStore) GetApp(name string) (*types.App, error) {
	var app types.App
	if err := s.get(bucketApps, name, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *BoltStore) ListApps() ([]*types.App, error) {
	var apps []*types.App
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketApps).ForEach(func(k, v []byte) error {
			var app types.App
			if err := json.Unmarshal(v, &app); err != nil {
				return err
			}
			apps = append(apps, &app)
			return nil
		})
	})
	return apps, err
}

func (s *BoltStore) PutApp(app *types.App) error {
	return s.put(bucketApps, app.Name, app)
}

func (s *BoltStore) DeleteApp(name string) error {
	return s.delete(bucketApps, name)
}

// Host operations

func (s *BoltStore) GetHost(id string) (*types.Host, error) {
	var host types.Host
	if err := s.get(bucketHosts, id, &host); err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *BoltStore) ListHosts() ([]*types.Host, error) {
	var hosts []*types.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).ForEach(func(k, v []byte) error {
			var host types.Host
			if err := json.Unmarshal(v, &host); err != nil {
				return err
			}
			hosts = append(hosts, &host)
			return nil
		})
	})
	return hosts, err
}

func (s *BoltStore) PutHost(host *types.Host) error {
	return s.put(bucketHosts, host.ID(), host)
}

func (s *BoltStore) DeleteHost(id string) error {
	return s.delete(bucketHosts, id)
}

// Image operations

func (s *BoltStore) GetImage(id string) (*types.Image, error) {
	var image types.Image
	if err := s.get(bucketImages, id, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

func (s *BoltStore) ListImages() ([]*types.Image, error) {
	var images []*types.Image
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(k, v []byte) error {
			var image types.Image
			if err := json.Unmarshal(v, &image); err != nil {
				return err
			}
			images = append(images, &image)
			return nil
		})
	})
	return images, err
}

func (s *BoltStore) ListImagesByApp(app string) ([]*types.Image, error) {
	images, err := s.ListImages()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Image
	for _, image := range images {
		if image.App == app {
			filtered = append(filtered, image)
		}
	}
	return filtered, nil
}

// Deployment operations

func (s *BoltStore) GetDeployment(id string) (*types.Deployment, error) {
	var dep types.Deployment
	if err := s.get(bucketDeployments, id, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (s *BoltStore) ListDeployments() ([]*types.Deployment, error) {
	var deps []*types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).ForEach(func(k, v []byte) error {
			var dep types.Deployment
			if err := json.Unmarshal(v, &dep); err != nil {
				return err
			}
			deps = append(deps, &dep)
			return nil
		})
	})
	return deps, err
}

func (s *BoltStore) ListDeploymentsByApp(app string) ([]*types.Deployment, error) {
	deps, err := s.ListDeployments()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Deployment
	for _, dep := range deps {
		if dep.AppName == app {
			filtered = append(filtered, dep)
		}
	}
	return filtered, nil
}

func (s *BoltStore) PutDeployment(dep *types.Deployment) error {
	return s.put(bucketDeployments, dep.ID(), dep)
}

func (s *BoltStore) DeleteDeployment(id string) error {
	return s.delete(bucketDeployments, id)
}

// Container operations

func (s *BoltStore) GetContainer(id string) (*types.Container, error) {
	var container types.Container
	if err := s.get(bucketContainers, id, &container); err != nil {
		return nil, err
	}
	return &container, nil
}

func (s *BoltStore) ListContainers() ([]*types.Container, error) {
	var containers []*types.Container
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContainers).ForEach(func(k, v []byte) error {
			var container types.Container
			if err := json.Unmarshal(v, &container); err != nil {
				return err
			}
			containers = append(containers, &container)
			return nil
		})
	})
	return containers, err
}

func (s *BoltStore) ListContainersByHost(hostID string) ([]*types.Container, error) {
	containers, err := s.ListContainers()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Container
	for _, container := range containers {
		if container.HostID == hostID {
			filtered = append(filtered, container)
		}
	}
	return filtered, nil
}

func (s *BoltStore) ListContainersByImageRef(ref string) ([]*types.Container, error) {
	containers, err := s.ListContainers()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Container
	for _, container := range containers {
		if container.ImageRef == ref {
			filtered = append(filtered, container)
		}
	}
	return filtered, nil
}

// Apply applies a staged batch in a single bolt transaction.
func (s *BoltStore) Apply(batch *Batch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, app := range batch.Apps {
			if err := putJSON(tx, bucketApps, app.Name, app); err != nil {
				return err
			}
		}
		for _, host := range batch.Hosts {
			if err := putJSON(tx, bucketHosts, host.ID(), host); err != nil {
				return err
			}
		}
		for _, image := range batch.Images {
			if err := putJSON(tx, bucketImages, image.ID, image); err != nil {
				return err
			}
		}
		for _, dep := range batch.Deployments {
			if err := putJSON(tx, bucketDeployments, dep.ID(), dep); err != nil {
				return err
			}
		}
		for _, container := range batch.Containers {
			if err := putJSON(tx, bucketContainers, container.ID, container); err != nil {
				return err
			}
		}
		for _, id := range batch.DeletedContainers {
			if err := tx.Bucket(bucketContainers).Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func putJSON(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}
