package render

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/types"
)

func TestRenderStringSubstitution(t *testing.T) {
	vars := map[string]any{
		"name": "postgres",
		"port": 5432,
		"tag":  "16.2",
	}

	tests := []struct {
		name     string
		template string
		want     any
	}{
		{"plain string untouched", "no expressions here", "no expressions here"},
		{"single string variable", "{{ name }}", "postgres"},
		{"single int keeps type", "{{ port }}", 5432},
		{"embedded stringifies", "{{ port }}:80", "5432:80"},
		{"multiple expressions", "{{ name }}:{{ tag }}", "postgres:16.2"},
		{"no spaces inside braces", "{{name}}", "postgres"},
		{"surrounding text", "image is {{ name }} today", "image is postgres today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderString(tt.template, vars)
			if err != nil {
				t.Fatalf("RenderString() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RenderString() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestRenderMissingVariableUnchanged(t *testing.T) {
	got, err := RenderString("host={{ missing }}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "host={{ missing }}", got)
}

func TestRenderUnknownFunctionUnchanged(t *testing.T) {
	got, err := RenderString("{{ not_a_function(1) }}", nil)
	require.NoError(t, err)
	assert.Equal(t, "{{ not_a_function(1) }}", got)
}

func TestRenderUnparsableExpressionUnchanged(t *testing.T) {
	got, err := RenderString("{{ 1 + 2 }}", nil)
	require.NoError(t, err)
	assert.Equal(t, "{{ 1 + 2 }}", got)
}

func TestRenderGeneratorEvaluationFails(t *testing.T) {
	_, err := RenderString("{{ base64_decode('%%%') }}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base64_decode")
}

func TestRenderWalksNestedStructures(t *testing.T) {
	template := map[string]any{
		"image": "nginx:{{ tag }}",
		"ports": []any{"{{ port }}:80", "9090:9090"},
		"env": map[string]any{
			"STATIC": "value",
			"HOST":   "{{ host }}",
		},
		"replicas": 3,
	}
	vars := map[string]any{"tag": "1.25", "port": 8080, "host": "db.internal"}

	out, err := Render(template, vars)
	require.NoError(t, err)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "nginx:1.25", m["image"])
	assert.Equal(t, []any{"8080:80", "9090:9090"}, m["ports"])
	assert.Equal(t, "db.internal", m["env"].(map[string]any)["HOST"])
	assert.Equal(t, 3, m["replicas"])
}

func TestRenderIdempotentWithoutGenerators(t *testing.T) {
	template := map[string]any{
		"image": "redis:{{ tag }}",
		"ports": []any{"{{ port }}:6379"},
	}
	vars := map[string]any{"tag": "7", "port": 6379}

	once, err := Render(template, vars)
	require.NoError(t, err)
	twice, err := Render(once, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestRenderQuotedArgsWithCommas(t *testing.T) {
	got, err := RenderString("{{ hash_value('a,b', 'sha256') }}", nil)
	require.NoError(t, err)
	s, ok := got.(string)
	require.True(t, ok)
	assert.Len(t, s, 64)
}

func TestMergeVariablesDefaultsAndOverrides(t *testing.T) {
	stack := &types.Stack{
		Variables: []types.VariableDef{
			{Name: "db_name", Type: types.VariableTypeString, Default: "app"},
			{Name: "db_port", Type: types.VariableTypeInteger, Default: 5432},
			{Name: "db_user", Type: types.VariableTypeString, Default: "admin"},
		},
	}
	merged, err := MergeVariables(stack, map[string]any{"db_user": "windflow"})
	require.NoError(t, err)

	assert.Equal(t, "app", merged["db_name"])
	assert.Equal(t, 5432, merged["db_port"])
	assert.Equal(t, "windflow", merged["db_user"])
}

func TestMergeVariablesResolvesGenerators(t *testing.T) {
	stack := &types.Stack{
		Variables: []types.VariableDef{
			{Name: "db_password", Type: types.VariableTypePassword, Default: "{{ generate_password(16, false) }}"},
		},
	}
	merged, err := MergeVariables(stack, nil)
	require.NoError(t, err)

	pw, ok := merged["db_password"].(string)
	require.True(t, ok)
	assert.Len(t, pw, 16)
	assert.NotContains(t, pw, "{{")
}

func TestMergeVariablesDeclarationOrderReferences(t *testing.T) {
	stack := &types.Stack{
		Variables: []types.VariableDef{
			{Name: "base", Type: types.VariableTypeString, Default: "wind"},
			{Name: "derived", Type: types.VariableTypeString, Default: "{{ base }}-flow"},
		},
	}
	merged, err := MergeVariables(stack, nil)
	require.NoError(t, err)
	assert.Equal(t, "wind-flow", merged["derived"])
}

func TestMergeVariablesGeneratorFailureSurfaces(t *testing.T) {
	stack := &types.Stack{
		Variables: []types.VariableDef{
			{Name: "broken", Default: "{{ random_string(8, 'base32') }}"},
		},
	}
	_, err := MergeVariables(stack, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
