package docker

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/windflowlabs/windflow/pkg/executor"
)

// DefaultRestartPolicy applies when a rendered config does not set one.
const DefaultRestartPolicy = "unless-stopped"

var (
	containerNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	imageRe         = regexp.MustCompile(`^[a-zA-Z0-9._:@/-]+$`)
	portRe          = regexp.MustCompile(`^[a-zA-Z0-9.:/-]+$`)
	restartRe       = regexp.MustCompile(`^(no|always|unless-stopped|on-failure(:[0-9]+)?)$`)
)

// ContainerSpec is a single-container deployment description built from
// a rendered stack config. Fields that end up unquoted on the command
// line (name, image, ports, restart policy) are validated against safe
// character sets; everything else is shell-quoted during assembly.
type ContainerSpec struct {
	Image         string
	Name          string
	Environment   map[string]string
	Ports         []string
	Volumes       []string
	RestartPolicy string
	Healthcheck   *Healthcheck
	Labels        map[string]string
	Command       []string
}

// Healthcheck mirrors the docker run --health-* flags. Interval,
// Timeout and StartPeriod are docker duration strings ("30s", "1m").
type Healthcheck struct {
	Cmd         string
	Interval    string
	Timeout     string
	Retries     int
	StartPeriod string
}

// FromConfig builds a ContainerSpec from a rendered stack config and
// validates it. Rendering may leave typed leaves (ports from integer
// variables, booleans in environment); values are stringified the same
// way the renderer embeds them.
func FromConfig(config map[string]any) (*ContainerSpec, error) {
	spec := &ContainerSpec{RestartPolicy: DefaultRestartPolicy}

	if v, ok := config["image"]; ok {
		spec.Image = stringify(v)
	}
	if v, ok := config["container_name"]; ok {
		spec.Name = stringify(v)
	}
	if v, ok := config["restart_policy"]; ok {
		if s := stringify(v); s != "" {
			spec.RestartPolicy = s
		}
	}

	if raw, ok := config["environment"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("environment must be a mapping, got %T", raw)
		}
		spec.Environment = make(map[string]string, len(m))
		for k, v := range m {
			spec.Environment[k] = stringify(v)
		}
	}

	if raw, ok := config["ports"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("ports must be a list, got %T", raw)
		}
		for _, p := range list {
			spec.Ports = append(spec.Ports, stringify(p))
		}
	}

	if raw, ok := config["volumes"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("volumes must be a list, got %T", raw)
		}
		for _, v := range list {
			spec.Volumes = append(spec.Volumes, stringify(v))
		}
	}

	if raw, ok := config["labels"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("labels must be a mapping, got %T", raw)
		}
		spec.Labels = make(map[string]string, len(m))
		for k, v := range m {
			spec.Labels[k] = stringify(v)
		}
	}

	if raw, ok := config["command"]; ok && raw != nil {
		switch c := raw.(type) {
		case string:
			spec.Command = strings.Fields(c)
		case []any:
			for _, w := range c {
				spec.Command = append(spec.Command, stringify(w))
			}
		default:
			return nil, fmt.Errorf("command must be a string or list, got %T", raw)
		}
	}

	if raw, ok := config["healthcheck"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("healthcheck must be a mapping, got %T", raw)
		}
		h := &Healthcheck{}
		if v, ok := m["cmd"]; ok {
			h.Cmd = stringify(v)
		} else if v, ok := m["test"]; ok {
			h.Cmd = stringify(v)
		}
		if v, ok := m["interval"]; ok {
			h.Interval = stringify(v)
		}
		if v, ok := m["timeout"]; ok {
			h.Timeout = stringify(v)
		}
		if v, ok := m["start_period"]; ok {
			h.StartPeriod = stringify(v)
		}
		if v, ok := m["retries"]; ok {
			n, err := strconv.Atoi(stringify(v))
			if err != nil {
				return nil, fmt.Errorf("healthcheck retries must be an integer, got %v", v)
			}
			h.Retries = n
		}
		spec.Healthcheck = h
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks the spec against the constraints docker run itself
// would enforce, before any subprocess is spawned.
func (s *ContainerSpec) Validate() error {
	if strings.TrimSpace(s.Image) == "" {
		return fmt.Errorf("container spec: image is required")
	}
	if !imageRe.MatchString(s.Image) {
		return fmt.Errorf("container spec: invalid image reference %q", s.Image)
	}
	if s.Name != "" && !containerNameRe.MatchString(s.Name) {
		return fmt.Errorf("container spec: invalid container name %q", s.Name)
	}
	for _, p := range s.Ports {
		if !strings.Contains(p, ":") {
			return fmt.Errorf("container spec: port %q must be HOST:CONTAINER", p)
		}
		if !portRe.MatchString(p) {
			return fmt.Errorf("container spec: invalid port mapping %q", p)
		}
	}
	if !restartRe.MatchString(s.RestartPolicy) {
		return fmt.Errorf("container spec: invalid restart policy %q", s.RestartPolicy)
	}
	return nil
}

// RunCommand assembles the docker run invocation. Map-backed flags are
// emitted in sorted key order so the command line is deterministic.
func (s *ContainerSpec) RunCommand() string {
	args := []string{"docker", "run", "-d"}
	if s.Name != "" {
		args = append(args, "--name", s.Name)
	}
	args = append(args, "--restart", s.RestartPolicy)
	for _, k := range sortedKeys(s.Environment) {
		args = append(args, "-e", executor.Quote(k+"="+s.Environment[k]))
	}
	for _, p := range s.Ports {
		args = append(args, "-p", p)
	}
	for _, v := range s.Volumes {
		args = append(args, "-v", executor.Quote(v))
	}
	if h := s.Healthcheck; h != nil && h.Cmd != "" {
		args = append(args, "--health-cmd", executor.Quote(h.Cmd))
		if h.Interval != "" {
			args = append(args, "--health-interval", h.Interval)
		}
		if h.Timeout != "" {
			args = append(args, "--health-timeout", h.Timeout)
		}
		if h.Retries > 0 {
			args = append(args, "--health-retries", strconv.Itoa(h.Retries))
		}
		if h.StartPeriod != "" {
			args = append(args, "--health-start-period", h.StartPeriod)
		}
	}
	for _, k := range sortedKeys(s.Labels) {
		args = append(args, "--label", executor.Quote(k+"="+s.Labels[k]))
	}
	args = append(args, s.Image)
	for _, w := range s.Command {
		args = append(args, executor.Quote(w))
	}
	return strings.Join(args, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
