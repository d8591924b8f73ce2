package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	swarmtypes "github.com/moby/moby/api/types/swarm"
	"github.com/moby/moby/api/types/system"
	"github.com/moby/moby/client"

	"github.com/windflowlabs/windflow/pkg/types"
)

// engineInfo is the slice of `docker info` the scan cares about. The
// same shape covers the API socket response and the --format json
// subprocess output.
type engineInfo struct {
	ServerVersion string
	Swarm         struct {
		LocalNodeState   string
		ControlAvailable bool
	}
}

func (s *Scanner) probeDocker(ctx context.Context) (*types.DockerCapabilities, error) {
	caps := &types.DockerCapabilities{}

	out, ok, err := s.run(ctx, "docker --version")
	if err != nil {
		return caps, fmt.Errorf("detect docker binary: %w", err)
	}
	caps.Installed = ok
	if ok {
		caps.Version = parseDockerVersion(out)
	}

	_, sockOK, err := s.run(ctx, "test -S "+s.cfg.DockerSocket)
	if err != nil {
		return caps, fmt.Errorf("check docker socket: %w", err)
	}
	caps.SocketAccessible = sockOK

	compose, err := s.probeCompose(ctx)
	if err != nil {
		return caps, fmt.Errorf("detect compose: %w", err)
	}
	caps.Compose = compose

	if !caps.Installed && !caps.SocketAccessible {
		return caps, nil
	}

	info, running, err := s.engineInfo(ctx)
	if err != nil {
		return caps, fmt.Errorf("query engine: %w", err)
	}
	caps.Running = running
	if !running {
		return caps, nil
	}
	if caps.Version == "" {
		caps.Version = info.ServerVersion
	}
	caps.Swarm = swarmFromState(info)
	return caps, nil
}

// engineInfo queries the running engine, over the API socket when the
// scan runs on the host itself and the socket is reachable, otherwise
// through the docker CLI. running is false when no engine answers,
// which is a finding rather than an error.
func (s *Scanner) engineInfo(ctx context.Context) (*engineInfo, bool, error) {
	if s.cfg.Local {
		if info, err := s.engineInfoSocket(ctx); err == nil {
			return info, true, nil
		}
		// Socket query failed; fall through to the CLI, which also
		// covers rootless daemons on non-default sockets.
	}

	out, ok, err := s.run(ctx, "docker info --format '{{json .}}'")
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	info := &engineInfo{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), info); err != nil {
		return nil, false, fmt.Errorf("parse docker info: %w", err)
	}
	return info, true, nil
}

func (s *Scanner) engineInfoSocket(ctx context.Context) (*engineInfo, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if s.cfg.DockerSocket != DefaultDockerSocket {
		opts = append(opts, client.WithHost("unix://"+s.cfg.DockerSocket))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	res, err := cli.Info(ctx, client.InfoOptions{})
	if err != nil {
		return nil, err
	}
	return engineInfoFromSystem(res.Info), nil
}

// engineInfoFromSystem narrows the API socket response to the fields
// the scan cares about, matching the shape of the CLI JSON path.
func engineInfoFromSystem(sys system.Info) *engineInfo {
	info := &engineInfo{ServerVersion: sys.ServerVersion}
	info.Swarm.LocalNodeState = string(sys.Swarm.LocalNodeState)
	info.Swarm.ControlAvailable = sys.Swarm.ControlAvailable
	return info
}

// swarmFromState classifies swarm membership. A node that was ever
// part of a swarm reports a non-inactive state even when not currently
// active.
func swarmFromState(info *engineInfo) *types.SwarmInfo {
	state := swarmtypes.LocalNodeState(info.Swarm.LocalNodeState)
	swarm := &types.SwarmInfo{
		Available: state != "" && state != swarmtypes.LocalNodeStateInactive,
		Active:    state == swarmtypes.LocalNodeStateActive,
	}
	if swarm.Available {
		if info.Swarm.ControlAvailable {
			swarm.NodeRole = "manager"
		} else {
			swarm.NodeRole = "worker"
		}
	}
	return swarm
}

// parseDockerVersion extracts the bare version from output like
// "Docker version 24.0.5, build ced0996". Unexpected shapes pass
// through as the first line.
func parseDockerVersion(out string) string {
	line := firstLine(out)
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[0] == "Docker" && fields[1] == "version" {
		return strings.TrimSuffix(fields[2], ",")
	}
	return line
}
