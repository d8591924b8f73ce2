package scanner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/windflowlabs/windflow/pkg/types"
)

// normalizeArch maps raw uname -m output to the canonical architecture
// names stored in capability records.
func normalizeArch(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "x86_64", "amd64":
		return "x86_64"
	case "i386", "i486", "i586", "i686", "x86":
		return "x86_32"
	case "aarch64", "arm64":
		return "arm64"
	case "armv8", "armv8l":
		return "armv8"
	case "armv7", "armv7l":
		return "armv7"
	case "armv6", "armv6l":
		return "armv6"
	default:
		return "unknown"
	}
}

func (s *Scanner) probePlatform(ctx context.Context) (*types.PlatformInfo, error) {
	info := &types.PlatformInfo{Architecture: "unknown"}

	out, ok, err := s.run(ctx, "uname -m")
	if err != nil {
		return info, fmt.Errorf("detect architecture: %w", err)
	}
	if ok {
		info.Architecture = normalizeArch(out)
	}

	// CPU model: /proc/cpuinfo on Linux, sysctl on macOS/BSD.
	out, ok, err = s.run(ctx, "grep -m1 'model name' /proc/cpuinfo | cut -d: -f2")
	if err != nil {
		return info, fmt.Errorf("detect cpu model: %w", err)
	}
	if !ok || strings.TrimSpace(out) == "" {
		out, ok, err = s.run(ctx, "sysctl -n machdep.cpu.brand_string")
		if err != nil {
			return info, fmt.Errorf("detect cpu model: %w", err)
		}
	}
	if ok {
		info.CPUModel = strings.TrimSpace(out)
	}

	out, ok, err = s.run(ctx, "nproc")
	if err != nil {
		return info, fmt.Errorf("count cores: %w", err)
	}
	if !ok {
		out, ok, err = s.run(ctx, "sysctl -n hw.ncpu")
		if err != nil {
			return info, fmt.Errorf("count cores: %w", err)
		}
	}
	if ok {
		if n, perr := strconv.Atoi(strings.TrimSpace(out)); perr == nil {
			info.Cores = n
		}
	}

	// MemTotal is reported in kB, hw.memsize in bytes.
	out, ok, err = s.run(ctx, "grep MemTotal /proc/meminfo | awk '{print $2}'")
	if err != nil {
		return info, fmt.Errorf("detect memory: %w", err)
	}
	if ok && strings.TrimSpace(out) != "" {
		if kb, perr := strconv.ParseFloat(strings.TrimSpace(out), 64); perr == nil {
			info.MemoryGB = roundGB(kb * 1024)
		}
		return info, nil
	}
	out, ok, err = s.run(ctx, "sysctl -n hw.memsize")
	if err != nil {
		return info, fmt.Errorf("detect memory: %w", err)
	}
	if ok {
		if b, perr := strconv.ParseFloat(strings.TrimSpace(out), 64); perr == nil {
			info.MemoryGB = roundGB(b)
		}
	}
	return info, nil
}

// roundGB converts bytes to gigabytes with two decimals.
func roundGB(bytes float64) float64 {
	gb := bytes / (1024 * 1024 * 1024)
	return float64(int(gb*100+0.5)) / 100
}

func (s *Scanner) probeOS(ctx context.Context) (*types.OSInfo, error) {
	info := &types.OSInfo{}

	out, ok, err := s.run(ctx, "uname -s")
	if err != nil {
		return info, fmt.Errorf("detect system: %w", err)
	}
	if ok {
		info.System = strings.TrimSpace(out)
	}

	out, ok, err = s.run(ctx, "uname -r")
	if err != nil {
		return info, fmt.Errorf("detect kernel: %w", err)
	}
	if ok {
		info.Kernel = strings.TrimSpace(out)
	}

	out, ok, err = s.run(ctx, "cat /etc/os-release")
	if err != nil {
		return info, fmt.Errorf("detect distribution: %w", err)
	}
	if ok {
		info.Distribution, info.Version = parseOSRelease(out)
	}
	if info.Distribution == "" {
		out, ok, err = s.run(ctx, "lsb_release -ds")
		if err != nil {
			return info, fmt.Errorf("detect distribution: %w", err)
		}
		if ok {
			info.Distribution = strings.Trim(strings.TrimSpace(out), `"`)
		}
	}
	return info, nil
}

// parseOSRelease extracts NAME and VERSION from /etc/os-release content.
func parseOSRelease(content string) (name, version string) {
	for _, line := range strings.Split(content, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "NAME":
			name = value
		case "VERSION":
			version = value
		}
	}
	return name, version
}

// virtualizationProbes lists the tools checked for the virtualization
// section. Presence-only probes have no version output.
var virtualizationProbes = []struct {
	name    string
	command string
}{
	{"virtualbox", "vboxmanage --version"},
	{"vagrant", "vagrant --version"},
	{"proxmox", "pveversion"},
	{"qemu", "qemu-system-x86_64 --version"},
	{"kvm", "test -e /dev/kvm"},
	{"libvirt", "test -S /var/run/libvirt/libvirt-sock"},
}

func (s *Scanner) probeVirtualization(ctx context.Context) (map[string]*types.ToolInfo, error) {
	tools := make(map[string]*types.ToolInfo, len(virtualizationProbes))
	for _, probe := range virtualizationProbes {
		out, ok, err := s.run(ctx, probe.command)
		if err != nil {
			return tools, fmt.Errorf("probe %s: %w", probe.name, err)
		}
		tools[probe.name] = &types.ToolInfo{Available: ok, Version: firstLine(out)}
	}
	return tools, nil
}

var kubernetesProbes = []struct {
	name    string
	command string
}{
	{"kubectl", "kubectl version --client -o json"},
	{"kubeadm", "kubeadm version -o json"},
	{"k3s", "k3s --version"},
	{"microk8s", "microk8s.kubectl version --output=json"},
}

func (s *Scanner) probeKubernetes(ctx context.Context) (map[string]*types.ToolInfo, error) {
	tools := make(map[string]*types.ToolInfo, len(kubernetesProbes))
	for _, probe := range kubernetesProbes {
		out, ok, err := s.run(ctx, probe.command)
		if err != nil {
			return tools, fmt.Errorf("probe %s: %w", probe.name, err)
		}
		tools[probe.name] = &types.ToolInfo{Available: ok, Version: firstLine(out)}
	}
	return tools, nil
}

// probeCompose checks the compose plugin first, then the standalone
// docker-compose binary.
func (s *Scanner) probeCompose(ctx context.Context) (*types.ToolInfo, error) {
	out, ok, err := s.run(ctx, "docker compose version")
	if err != nil {
		return nil, err
	}
	if !ok {
		out, ok, err = s.run(ctx, "docker-compose --version")
		if err != nil {
			return nil, err
		}
	}
	return &types.ToolInfo{Available: ok, Version: firstLine(out)}, nil
}

// firstLine trims output to its first non-empty line.
func firstLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
