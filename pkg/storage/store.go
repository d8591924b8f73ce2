package storage

import (
	"errors"
	"time"

	"github.com/windflowlabs/windflow/pkg/types"
)

// ErrNotFound is returned for lookups of entities that do not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary of the platform. It is the source
// of truth for deployment state; the orchestrator never caches rows
// beyond one worker iteration.
type Store interface {
	// Deployments
	CreateDeployment(d *types.Deployment) error
	GetDeployment(id string) (*types.Deployment, error)
	GetDeploymentByName(organizationID, name string) (*types.Deployment, error)
	ListDeploymentsByOrg(organizationID string) ([]*types.Deployment, error)
	ListDeploymentsByStatus(status types.DeploymentStatus) ([]*types.Deployment, error)
	// ListStaleDeployments returns rows in any of the given statuses
	// created before olderThan. The recovery sweeper feeds on it.
	ListStaleDeployments(statuses []types.DeploymentStatus, olderThan time.Time) ([]*types.Deployment, error)
	UpdateDeployment(d *types.Deployment) error
	DeleteDeployment(id string) error

	// Stacks
	CreateStack(s *types.Stack) error
	GetStack(id string) (*types.Stack, error)
	ListStacks() ([]*types.Stack, error)
	UpdateStack(s *types.Stack) error
	DeleteStack(id string) error

	// Targets
	CreateTarget(t *types.Target) error
	GetTarget(id string) (*types.Target, error)
	ListTargets() ([]*types.Target, error)
	UpdateTarget(t *types.Target) error
	// UpdateTargetCapabilities applies an accepted scan: platform, OS,
	// the capability sub-record, scan date and outcome.
	UpdateTargetCapabilities(id string, scan *types.ScanResult, scanDate time.Time, success bool) error
	SetTargetScanStatus(id string, status types.TargetStatus) error
	DeleteTarget(id string) error

	// Users
	CreateUser(u *types.User) error
	GetUser(id string) (*types.User, error)
	GetUserByEmail(email string) (*types.User, error)
	GetUserByUsername(username string) (*types.User, error)
	GetFirstActiveSuperuser() (*types.User, error)

	Close() error
}
