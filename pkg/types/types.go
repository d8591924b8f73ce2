package types

import (
	"time"
)

// Stack is a reusable parameterized deployment template plus its
// variable schema, as loaded from a stack definition file or the store.
type Stack struct {
	ID               string
	Name             string
	Version          string
	Category         string
	Author           string
	License          string
	Description      string
	IconURL          string
	DocumentationURL string
	Screenshots      []string
	Tags             []string
	IsPublic         bool
	TargetType       TargetType
	DeploymentName   string // template string used to generate deployment names
	Template         map[string]any
	Variables        []VariableDef // ordered: defaults render in declaration order
	TargetParameters map[string]any
	DeploymentNotes  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VariableDef describes one user-facing stack variable.
type VariableDef struct {
	Name        string
	Type        VariableType
	Label       string
	Description string
	Default     any
	Required    bool
	Group       string
	Help        string
	Pattern     string
	Enum        []any
	EnumLabels  []string
	Minimum     *float64
	Maximum     *float64
	MinLength   *int
	MaxLength   *int
	DependsOn   string
}

// VariableType defines the input type of a stack variable.
type VariableType string

const (
	VariableTypeString   VariableType = "string"
	VariableTypeNumber   VariableType = "number"
	VariableTypeInteger  VariableType = "integer"
	VariableTypeBoolean  VariableType = "boolean"
	VariableTypePassword VariableType = "password"
	VariableTypeTextarea VariableType = "textarea"
)

// TargetType classifies what kind of workload a target host can run.
type TargetType string

const (
	TargetTypeDocker        TargetType = "docker"
	TargetTypeDockerCompose TargetType = "docker_compose"
	TargetTypeDockerSwarm   TargetType = "docker_swarm"
	TargetTypeKubernetes    TargetType = "kubernetes"
	TargetTypeVM            TargetType = "vm"
	TargetTypePhysical      TargetType = "physical"
)

// Target is a host with credentials and detected capabilities.
type Target struct {
	ID           string
	Name         string
	Host         string
	Port         int
	Type         TargetType
	Credentials  *TargetCredentials
	Status       TargetStatus
	ScanDate     *time.Time
	ScanSuccess  bool
	PlatformInfo *PlatformInfo
	OSInfo       *OSInfo
	Capabilities *CapabilityRecord
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TargetCredentials holds access credentials for remote execution.
// Password and SudoPassword are encrypted at rest by the store.
type TargetCredentials struct {
	Username     string
	Password     string
	PrivateKey   string // PEM, optional alternative to password auth
	SudoUser     string // non-empty enables sudo wrapping
	SudoPassword string
}

// TargetStatus represents the scan state of a target.
type TargetStatus string

const (
	TargetStatusNew         TargetStatus = "new"
	TargetStatusScanning    TargetStatus = "scanning"
	TargetStatusReady       TargetStatus = "ready"
	TargetStatusUnreachable TargetStatus = "unreachable"
)

// Deployment is a single attempt (with retries) to materialize a stack
// on a target. Config and Variables are snapshots written once, before
// the row leaves PENDING; they're never re-rendered.
type Deployment struct {
	ID                       string
	StackID                  string
	TargetID                 string
	OrganizationID           string
	Name                     string // unique per organization
	Status                   DeploymentStatus
	Config                   map[string]any // rendered spec snapshot
	Variables                map[string]any // rendered values snapshot, incl. generated secrets
	RenderedTargetParameters map[string]any
	Logs                     string // append-only, prefixed lines
	ErrorMessage             string
	DeployedAt               *time.Time
	StoppedAt                *time.Time
	DeployDurationSeconds    *float64
	TaskStartedAt            *time.Time
	TaskRetryCount           int
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// DeploymentStatus represents the lifecycle state of a deployment.
// The uppercase values are part of the wire contract with the UI.
type DeploymentStatus string

const (
	StatusPending     DeploymentStatus = "PENDING"
	StatusDeploying   DeploymentStatus = "DEPLOYING"
	StatusRunning     DeploymentStatus = "RUNNING"
	StatusFailed      DeploymentStatus = "FAILED"
	StatusStopped     DeploymentStatus = "STOPPED"
	StatusRollingBack DeploymentStatus = "ROLLING_BACK"
)

// IsTerminal reports whether s is a resting state. Terminal rows only
// move again through an explicit user-initiated retry.
func (s DeploymentStatus) IsTerminal() bool {
	return s == StatusRunning || s == StatusFailed || s == StatusStopped
}

// User is the slice of the account model the core consumes.
type User struct {
	ID             string
	Email          string
	Username       string
	OrganizationID string
	IsActive       bool
	IsSuperuser    bool
	CreatedAt      time.Time
}

// PlatformInfo describes the hardware of a scanned host.
type PlatformInfo struct {
	Architecture string // normalized: x86_64, x86_32, arm64, armv8, armv7, armv6, unknown
	CPUModel     string
	Cores        int
	MemoryGB     float64
}

// OSInfo describes the operating system of a scanned host.
type OSInfo struct {
	System       string // uname -s
	Distribution string
	Version      string
	Kernel       string // uname -r
}

// ToolInfo records whether a probed binary exists and its version.
type ToolInfo struct {
	Available bool
	Version   string
}

// DockerCapabilities is the Docker section of a scan.
type DockerCapabilities struct {
	Installed        bool
	Version          string
	Running          bool
	SocketAccessible bool
	Compose          *ToolInfo
	Swarm            *SwarmInfo
}

// SwarmInfo captures swarm membership of a Docker engine.
// Available means LocalNodeState != "inactive"; Active means == "active".
type SwarmInfo struct {
	Available bool
	Active    bool
	NodeRole  string // "manager" or "worker"
}

// CapabilityRecord is the subset of a scan persisted onto a Target.
type CapabilityRecord struct {
	Virtualization map[string]*ToolInfo
	Docker         *DockerCapabilities
	Kubernetes     map[string]*ToolInfo
}

// ScanResult is the normalized outcome of one capability scan.
// Individual probe failures accumulate in Errors without failing the
// scan; Success is true iff Errors is empty.
type ScanResult struct {
	Host           string
	ScanDate       time.Time
	Success        bool
	Platform       *PlatformInfo
	OS             *OSInfo
	Virtualization map[string]*ToolInfo
	Docker         *DockerCapabilities
	Kubernetes     map[string]*ToolInfo
	Errors         []string
}

// Capabilities extracts the persistable capability sub-record.
func (r *ScanResult) Capabilities() *CapabilityRecord {
	return &CapabilityRecord{
		Virtualization: r.Virtualization,
		Docker:         r.Docker,
		Kubernetes:     r.Kubernetes,
	}
}

// Log line prefixes appended to Deployment.Logs. These are surfaced
// verbatim in the UI and are part of the external contract.
const (
	LogPrefixInfo    = "[INFO]"
	LogPrefixWarn    = "[WARN]"
	LogPrefixError   = "[ERROR]"
	LogPrefixRetry   = "[RETRY]"
	LogPrefixSuccess = "[SUCCESS]"
	LogPrefixSystem  = "[SYSTEM]"
)
