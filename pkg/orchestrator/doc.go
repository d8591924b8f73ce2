// Package orchestrator owns the deployment lifecycle: creating rows
// from stacks, running bounded retry workers against execution targets,
// recovering deployments orphaned by restarts, and tearing resources
// down on delete. It is the only owner of in-flight task state.
package orchestrator
