package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfigDefaults(t *testing.T) {
	spec, err := FromConfig(map[string]any{"image": "nginx:1.25"})
	require.NoError(t, err)

	assert.Equal(t, "nginx:1.25", spec.Image)
	assert.Equal(t, DefaultRestartPolicy, spec.RestartPolicy)
	assert.Empty(t, spec.Name)
	assert.Empty(t, spec.Ports)
}

func TestFromConfigFull(t *testing.T) {
	spec, err := FromConfig(map[string]any{
		"image":          "postgres:16",
		"container_name": "windflow-abc12345",
		"restart_policy": "always",
		"environment": map[string]any{
			"POSTGRES_PASSWORD": "s3cret",
			"POSTGRES_PORT":     5432,
		},
		"ports":   []any{"5432:5432"},
		"volumes": []any{"pgdata:/var/lib/postgresql/data"},
		"labels":  map[string]any{"app": "db"},
		"command": "postgres -c max_connections=200",
		"healthcheck": map[string]any{
			"cmd":      "pg_isready -U postgres",
			"interval": "10s",
			"retries":  5,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "windflow-abc12345", spec.Name)
	assert.Equal(t, "always", spec.RestartPolicy)
	assert.Equal(t, "5432", spec.Environment["POSTGRES_PORT"])
	assert.Equal(t, []string{"postgres", "-c", "max_connections=200"}, spec.Command)
	require.NotNil(t, spec.Healthcheck)
	assert.Equal(t, "pg_isready -U postgres", spec.Healthcheck.Cmd)
	assert.Equal(t, 5, spec.Healthcheck.Retries)
}

func TestFromConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{"missing image", map[string]any{"ports": []any{"80:80"}}},
		{"blank image", map[string]any{"image": "  "}},
		{"image with metacharacters", map[string]any{"image": "nginx; rm -rf /"}},
		{"bad container name", map[string]any{"image": "nginx", "container_name": "-leading-dash"}},
		{"port without colon", map[string]any{"image": "nginx", "ports": []any{"8080"}}},
		{"port with metacharacters", map[string]any{"image": "nginx", "ports": []any{"$(evil):80"}}},
		{"environment not a mapping", map[string]any{"image": "nginx", "environment": []any{"A=1"}}},
		{"volumes not a list", map[string]any{"image": "nginx", "volumes": "data:/data"}},
		{"unknown restart policy", map[string]any{"image": "nginx", "restart_policy": "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestRunCommandMinimalShape(t *testing.T) {
	spec := &ContainerSpec{
		Image:         "nginx:1.25",
		Name:          "windflow-abc12345",
		Ports:         []string{"8080:80"},
		RestartPolicy: DefaultRestartPolicy,
	}
	want := "docker run -d --name windflow-abc12345 --restart unless-stopped -p 8080:80 nginx:1.25"
	if got := spec.RunCommand(); got != want {
		t.Errorf("RunCommand() = %q, want %q", got, want)
	}
}

func TestRunCommandQuotesAndSortsMaps(t *testing.T) {
	spec := &ContainerSpec{
		Image:         "redis:7",
		RestartPolicy: "no",
		Environment: map[string]string{
			"B_SECOND": "two words",
			"A_FIRST":  "1",
		},
		Volumes: []string{"cache:/data"},
		Labels:  map[string]string{"ops.windflow.managed": "true"},
	}
	want := "docker run -d --restart no" +
		" -e 'A_FIRST=1' -e 'B_SECOND=two words'" +
		" -v 'cache:/data'" +
		" --label 'ops.windflow.managed=true'" +
		" redis:7"
	assert.Equal(t, want, spec.RunCommand())
}

func TestRunCommandHealthcheckFlags(t *testing.T) {
	spec := &ContainerSpec{
		Image:         "postgres:16",
		RestartPolicy: DefaultRestartPolicy,
		Healthcheck: &Healthcheck{
			Cmd:         "pg_isready",
			Interval:    "10s",
			Timeout:     "3s",
			Retries:     5,
			StartPeriod: "30s",
		},
	}
	got := spec.RunCommand()
	assert.Contains(t, got, "--health-cmd 'pg_isready'")
	assert.Contains(t, got, "--health-interval 10s")
	assert.Contains(t, got, "--health-timeout 3s")
	assert.Contains(t, got, "--health-retries 5")
	assert.Contains(t, got, "--health-start-period 30s")
}

func TestRunCommandAppendsCommandWords(t *testing.T) {
	spec := &ContainerSpec{
		Image:         "redis:7",
		RestartPolicy: DefaultRestartPolicy,
		Command:       []string{"redis-server", "--appendonly", "yes"},
	}
	want := "docker run -d --restart unless-stopped redis:7 'redis-server' '--appendonly' 'yes'"
	assert.Equal(t, want, spec.RunCommand())
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"s", "s"},
		{8080, "8080"},
		{float64(5432), "5432"},
		{2.5, "2.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := stringify(tt.in); got != tt.want {
			t.Errorf("stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
