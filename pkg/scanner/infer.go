package scanner

import "github.com/windflowlabs/windflow/pkg/types"

// InferTargetType classifies a scanned host by its strongest detected
// capability: swarm membership beats a plain engine, an engine beats
// Kubernetes tooling, Kubernetes beats virtualization, and a host with
// none of those is treated as bare metal.
func InferTargetType(result *types.ScanResult) types.TargetType {
	if d := result.Docker; d != nil {
		if d.Swarm != nil && d.Swarm.Available {
			return types.TargetTypeDockerSwarm
		}
		if d.Installed || d.Running {
			return types.TargetTypeDocker
		}
	}
	if anyAvailable(result.Kubernetes) {
		return types.TargetTypeKubernetes
	}
	if anyAvailable(result.Virtualization) {
		return types.TargetTypeVM
	}
	return types.TargetTypePhysical
}

func anyAvailable(tools map[string]*types.ToolInfo) bool {
	for _, tool := range tools {
		if tool != nil && tool.Available {
			return true
		}
	}
	return false
}
