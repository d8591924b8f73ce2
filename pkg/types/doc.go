/*
Package types defines the core data structures used throughout WindFlow.

This package contains the fundamental types of WindFlow's domain model:
stacks, targets, deployments, users, capability scans, and domain
events. Every other package consumes these types for state management,
persistence, and event fan-out; none of them import anything above this
package.

# Core Types

Stack catalog:
  - Stack: parameterized deployment template plus variable schema
  - VariableDef: one user-facing variable (type, default, constraints)
  - TargetType: docker, docker_compose, docker_swarm, kubernetes, vm, physical

Targets and scanning:
  - Target: a host with credentials and detected capabilities
  - TargetCredentials: SSH/sudo access material (encrypted at rest)
  - ScanResult: normalized output of one capability scan
  - PlatformInfo, OSInfo, ToolInfo, DockerCapabilities, SwarmInfo

Deployments:
  - Deployment: one attempt (with retries) to materialize a stack
  - DeploymentStatus: PENDING, DEPLOYING, RUNNING, FAILED, STOPPED,
    ROLLING_BACK (uppercase values are part of the UI wire contract)

Events:
  - Event and EventKind: the closed set of domain events carried by
    pkg/events and bridged onto WebSocket messages by pkg/ws

# Conventions

Statuses and kinds are string-typed constants so they serialize
naturally and stay greppable. Snapshot fields on Deployment (Config,
Variables, RenderedTargetParameters) are written exactly once, before
the row first leaves PENDING, and are never re-rendered; retries reuse
them so generated secrets stay stable. Log lines appended to
Deployment.Logs carry one of the LogPrefix* constants; the UI renders
these prefixes verbatim.
*/
package types
