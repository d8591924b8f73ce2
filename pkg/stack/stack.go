package stack

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/windflowlabs/windflow/pkg/types"
)

// metadata mirrors the metadata block of a stack file.
type metadata struct {
	Name             string   `yaml:"name"`
	Version          string   `yaml:"version"`
	Category         string   `yaml:"category"`
	Author           string   `yaml:"author"`
	License          string   `yaml:"license"`
	Description      string   `yaml:"description"`
	TargetType       string   `yaml:"target_type"`
	IconURL          string   `yaml:"icon_url"`
	DocumentationURL string   `yaml:"documentation_url"`
	Screenshots      []string `yaml:"screenshots"`
	Tags             []string `yaml:"tags"`
	IsPublic         bool     `yaml:"is_public"`
	DeploymentName   string   `yaml:"deployment_name"`
}

type stackFile struct {
	Metadata         metadata       `yaml:"metadata"`
	Template         map[string]any `yaml:"template"`
	Variables        yaml.Node      `yaml:"variables"`
	TargetParameters map[string]any `yaml:"target_parameters"`
	DeploymentNotes  string         `yaml:"deployment_notes"`
}

type variableDef struct {
	Type        string   `yaml:"type"`
	Label       string   `yaml:"label"`
	Description string   `yaml:"description"`
	Default     any      `yaml:"default"`
	Required    bool     `yaml:"required"`
	Group       string   `yaml:"group"`
	Help        string   `yaml:"help"`
	Pattern     string   `yaml:"pattern"`
	Enum        []any    `yaml:"enum"`
	EnumLabels  []string `yaml:"enum_labels"`
	Minimum     *float64 `yaml:"minimum"`
	Maximum     *float64 `yaml:"maximum"`
	MinLength   *int     `yaml:"min_length"`
	MaxLength   *int     `yaml:"max_length"`
	DependsOn   string   `yaml:"depends_on"`
}

var validTargetTypes = map[types.TargetType]bool{
	types.TargetTypeDocker:        true,
	types.TargetTypeDockerCompose: true,
	types.TargetTypeDockerSwarm:   true,
	types.TargetTypeKubernetes:    true,
	types.TargetTypeVM:            true,
	types.TargetTypePhysical:      true,
}

var validVariableTypes = map[types.VariableType]bool{
	types.VariableTypeString:   true,
	types.VariableTypeNumber:   true,
	types.VariableTypeInteger:  true,
	types.VariableTypeBoolean:  true,
	types.VariableTypePassword: true,
	types.VariableTypeTextarea: true,
}

// LoadFile reads and parses a stack definition from disk.
func LoadFile(path string) (*types.Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack file: %w", err)
	}
	stack, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stack, nil
}

// Parse decodes a stack definition and validates its metadata and
// variable schema. Variable declaration order is preserved: defaults
// render in file order, so later variables may reference earlier ones.
func Parse(data []byte) (*types.Stack, error) {
	var file stackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stack file: %w", err)
	}

	if err := validateMetadata(&file.Metadata); err != nil {
		return nil, err
	}
	if len(file.Template) == 0 {
		return nil, fmt.Errorf("stack file: template is required")
	}

	vars, err := parseVariables(&file.Variables)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &types.Stack{
		ID:               uuid.NewString(),
		Name:             file.Metadata.Name,
		Version:          file.Metadata.Version,
		Category:         file.Metadata.Category,
		Author:           file.Metadata.Author,
		License:          file.Metadata.License,
		Description:      file.Metadata.Description,
		IconURL:          file.Metadata.IconURL,
		DocumentationURL: file.Metadata.DocumentationURL,
		Screenshots:      file.Metadata.Screenshots,
		Tags:             file.Metadata.Tags,
		IsPublic:         file.Metadata.IsPublic,
		TargetType:       types.TargetType(file.Metadata.TargetType),
		DeploymentName:   file.Metadata.DeploymentName,
		Template:         file.Template,
		Variables:        vars,
		TargetParameters: file.TargetParameters,
		DeploymentNotes:  file.DeploymentNotes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func validateMetadata(m *metadata) error {
	required := map[string]string{
		"name":        m.Name,
		"version":     m.Version,
		"category":    m.Category,
		"author":      m.Author,
		"license":     m.License,
		"description": m.Description,
		"target_type": m.TargetType,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("stack metadata: %s is required", field)
		}
	}
	if !validTargetTypes[types.TargetType(m.TargetType)] {
		return fmt.Errorf("stack metadata: unknown target_type %q", m.TargetType)
	}
	return nil
}

// parseVariables walks the variables mapping node directly so the
// declaration order survives decoding.
func parseVariables(node *yaml.Node) ([]types.VariableDef, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("stack file: variables must be a mapping")
	}

	defs := make([]types.VariableDef, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var raw variableDef
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		if raw.Type == "" {
			raw.Type = string(types.VariableTypeString)
		}
		if !validVariableTypes[types.VariableType(raw.Type)] {
			return nil, fmt.Errorf("variable %q: unknown type %q", name, raw.Type)
		}
		if len(raw.EnumLabels) > 0 && len(raw.EnumLabels) != len(raw.Enum) {
			return nil, fmt.Errorf("variable %q: enum_labels must match enum length", name)
		}
		defs = append(defs, types.VariableDef{
			Name:        name,
			Type:        types.VariableType(raw.Type),
			Label:       raw.Label,
			Description: raw.Description,
			Default:     raw.Default,
			Required:    raw.Required,
			Group:       raw.Group,
			Help:        raw.Help,
			Pattern:     raw.Pattern,
			Enum:        raw.Enum,
			EnumLabels:  raw.EnumLabels,
			Minimum:     raw.Minimum,
			Maximum:     raw.Maximum,
			MinLength:   raw.MinLength,
			MaxLength:   raw.MaxLength,
			DependsOn:   raw.DependsOn,
		})
	}
	return defs, nil
}
