package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/windflowlabs/windflow/pkg/security"
	"github.com/windflowlabs/windflow/pkg/types"
)

var (
	// Bucket names
	bucketDeployments = []byte("deployments")
	bucketStacks      = []byte("stacks")
	bucketTargets     = []byte("targets")
	bucketUsers       = []byte("users")
)

// BoltStore implements Store using BoltDB, one bucket per entity with
// JSON values keyed by ID.
type BoltStore struct {
	db      *bolt.DB
	secrets *security.SecretsManager
}

// NewBoltStore opens (creating if needed) the database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "windflow.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketDeployments,
			bucketStacks,
			bucketTargets,
			bucketUsers,
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

// SetSecretsManager enables at-rest encryption of target credentials.
// Targets written before the manager was set are returned as stored.
func (s *BoltStore) SetSecretsManager(sm *security.SecretsManager) {
	s.secrets = sm
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(id), data)
}

// Deployment operations

func (s *BoltStore) CreateDeployment(d *types.Deployment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketDeployments, d.ID, d)
	})
}

func (s *BoltStore) GetDeployment(id string) (*types.Deployment, error) {
	var d types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDeployments).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *BoltStore) GetDeploymentByName(organizationID, name string) (*types.Deployment, error) {
	var found *types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).ForEach(func(k, v []byte) error {
			var d types.Deployment
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.OrganizationID == organizationID && d.Name == name {
				found = &d
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("deployment %s/%s: %w", organizationID, name, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) listDeployments(match func(*types.Deployment) bool) ([]*types.Deployment, error) {
	var deployments []*types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).ForEach(func(k, v []byte) error {
			var d types.Deployment
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if match(&d) {
				deployments = append(deployments, &d)
			}
			return nil
		})
	})
	return deployments, err
}

func (s *BoltStore) ListDeploymentsByOrg(organizationID string) ([]*types.Deployment, error) {
	return s.listDeployments(func(d *types.Deployment) bool {
		return d.OrganizationID == organizationID
	})
}

func (s *BoltStore) ListDeploymentsByStatus(status types.DeploymentStatus) ([]*types.Deployment, error) {
	return s.listDeployments(func(d *types.Deployment) bool {
		return d.Status == status
	})
}

func (s *BoltStore) ListStaleDeployments(statuses []types.DeploymentStatus, olderThan time.Time) ([]*types.Deployment, error) {
	return s.listDeployments(func(d *types.Deployment) bool {
		if !d.CreatedAt.Before(olderThan) {
			return false
		}
		for _, st := range statuses {
			if d.Status == st {
				return true
			}
		}
		return false
	})
}

func (s *BoltStore) UpdateDeployment(d *types.Deployment) error {
	d.UpdatedAt = time.Now().UTC()
	return s.CreateDeployment(d)
}

func (s *BoltStore) DeleteDeployment(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).Delete([]byte(id))
	})
}

// Stack operations

func (s *BoltStore) CreateStack(stack *types.Stack) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketStacks, stack.ID, stack)
	})
}

func (s *BoltStore) GetStack(id string) (*types.Stack, error) {
	var stack types.Stack
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketStacks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("stack %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &stack)
	})
	if err != nil {
		return nil, err
	}
	return &stack, nil
}

func (s *BoltStore) ListStacks() ([]*types.Stack, error) {
	var stacks []*types.Stack
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStacks).ForEach(func(k, v []byte) error {
			var stack types.Stack
			if err := json.Unmarshal(v, &stack); err != nil {
				return err
			}
			stacks = append(stacks, &stack)
			return nil
		})
	})
	return stacks, err
}

func (s *BoltStore) UpdateStack(stack *types.Stack) error {
	stack.UpdatedAt = time.Now().UTC()
	return s.CreateStack(stack)
}

func (s *BoltStore) DeleteStack(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStacks).Delete([]byte(id))
	})
}

// Target operations

func (s *BoltStore) CreateTarget(t *types.Target) error {
	stored, err := s.encryptCredentials(t)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketTargets, stored.ID, stored)
	})
}

func (s *BoltStore) GetTarget(id string) (*types.Target, error) {
	var t types.Target
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTargets).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("target %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return nil, err
	}
	if err := s.decryptCredentials(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStore) ListTargets() ([]*types.Target, error) {
	var targets []*types.Target
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTargets).ForEach(func(k, v []byte) error {
			var t types.Target
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			targets = append(targets, &t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if err := s.decryptCredentials(t); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

func (s *BoltStore) UpdateTarget(t *types.Target) error {
	t.UpdatedAt = time.Now().UTC()
	return s.CreateTarget(t)
}

func (s *BoltStore) UpdateTargetCapabilities(id string, scan *types.ScanResult, scanDate time.Time, success bool) error {
	return s.mutateTarget(id, func(t *types.Target) {
		t.PlatformInfo = scan.Platform
		t.OSInfo = scan.OS
		t.Capabilities = scan.Capabilities()
		t.ScanDate = &scanDate
		t.ScanSuccess = success
		if success {
			t.Status = types.TargetStatusReady
		} else {
			t.Status = types.TargetStatusUnreachable
		}
	})
}

func (s *BoltStore) SetTargetScanStatus(id string, status types.TargetStatus) error {
	return s.mutateTarget(id, func(t *types.Target) {
		t.Status = status
	})
}

// mutateTarget applies fn to the stored row inside one transaction, so
// concurrent scan updates cannot interleave. Credentials stay exactly
// as stored (already encrypted when a SecretsManager is set).
func (s *BoltStore) mutateTarget(id string, fn func(*types.Target)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTargets)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("target %s: %w", id, ErrNotFound)
		}
		var t types.Target
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		fn(&t)
		t.UpdatedAt = time.Now().UTC()
		return put(tx, bucketTargets, t.ID, &t)
	})
}

func (s *BoltStore) DeleteTarget(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTargets).Delete([]byte(id))
	})
}

// encryptCredentials returns a copy of t with password fields sealed.
// The original is never mutated: callers keep plaintext credentials for
// the executors they are about to build.
func (s *BoltStore) encryptCredentials(t *types.Target) (*types.Target, error) {
	if s.secrets == nil || t.Credentials == nil {
		return t, nil
	}
	stored := *t
	creds := *t.Credentials
	var err error
	if creds.Password, err = s.secrets.EncryptString(creds.Password); err != nil {
		return nil, fmt.Errorf("encrypt target %s credentials: %w", t.ID, err)
	}
	if creds.SudoPassword, err = s.secrets.EncryptString(creds.SudoPassword); err != nil {
		return nil, fmt.Errorf("encrypt target %s credentials: %w", t.ID, err)
	}
	if creds.PrivateKey, err = s.secrets.EncryptString(creds.PrivateKey); err != nil {
		return nil, fmt.Errorf("encrypt target %s credentials: %w", t.ID, err)
	}
	stored.Credentials = &creds
	return &stored, nil
}

func (s *BoltStore) decryptCredentials(t *types.Target) error {
	if s.secrets == nil || t.Credentials == nil {
		return nil
	}
	var err error
	c := t.Credentials
	if c.Password, err = s.secrets.DecryptString(c.Password); err != nil {
		return fmt.Errorf("decrypt target %s credentials: %w", t.ID, err)
	}
	if c.SudoPassword, err = s.secrets.DecryptString(c.SudoPassword); err != nil {
		return fmt.Errorf("decrypt target %s credentials: %w", t.ID, err)
	}
	if c.PrivateKey, err = s.secrets.DecryptString(c.PrivateKey); err != nil {
		return fmt.Errorf("decrypt target %s credentials: %w", t.ID, err)
	}
	return nil
}

// User operations

func (s *BoltStore) CreateUser(u *types.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketUsers, u.ID, u)
	})
}

func (s *BoltStore) GetUser(id string) (*types.User, error) {
	var u types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *BoltStore) findUser(match func(*types.User) bool) (*types.User, error) {
	var found *types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var u types.User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			if found == nil && match(&u) {
				found = &u
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) GetUserByEmail(email string) (*types.User, error) {
	return s.findUser(func(u *types.User) bool { return u.Email == email })
}

func (s *BoltStore) GetUserByUsername(username string) (*types.User, error) {
	return s.findUser(func(u *types.User) bool { return u.Username == username })
}

func (s *BoltStore) GetFirstActiveSuperuser() (*types.User, error) {
	return s.findUser(func(u *types.User) bool { return u.IsActive && u.IsSuperuser })
}
