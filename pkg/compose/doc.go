/*
Package compose wraps docker compose as typed operations for
multi-service deployments.

It is the sibling of pkg/docker: the same CommandExecutor transport, the
same (ok, output) contract, but driving a whole project instead of one
container. Rendered compose specs are serialized by this package too, so
the emitted file and the commands that consume it stay in one place.

# Stable Emission

Marshal writes mappings with a fixed key order: the well-known top-level
keys (version, name, services, networks, volumes, configs, secrets)
first, everything else alphabetically, and all nested mappings sorted.
Rendering the same deployment twice therefore produces byte-identical
files, which makes file diffs meaningful during debugging and keeps
tests exact.

EmitFile writes through the executor's WriteFile rather than the local
filesystem. A compose file is only useful on the host where docker
compose runs; for SSH targets that host is remote.

# Timeouts

  - up -d: 300s (cold deployments pull every image in the project)
  - down:  120s
  - ps, logs: the executor default (30s)

A missed deadline reports (ok=false, "Timeout") like every other
executor failure, and the orchestrator's retry policy takes it from
there.

# Status Parsing

docker compose ps --format json emits one JSON object per line on
current releases and a single JSON array on older ones. Status accepts
both and returns typed ContainerSummary rows.
*/
package compose
