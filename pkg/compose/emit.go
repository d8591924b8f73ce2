package compose

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// topLevelOrder fixes the position of well-known compose keys; anything
// else follows alphabetically. Nested mappings are always sorted.
var topLevelOrder = map[string]int{
	"version":  0,
	"name":     1,
	"services": 2,
	"networks": 3,
	"volumes":  4,
	"configs":  5,
	"secrets":  6,
}

// Validate checks a rendered compose spec for the minimum structure
// docker compose needs before anything is written to disk.
func Validate(data map[string]any) error {
	if _, ok := data["version"]; !ok {
		return fmt.Errorf("compose spec: version is required")
	}
	rawServices, ok := data["services"]
	if !ok {
		return fmt.Errorf("compose spec: services is required")
	}
	services, ok := rawServices.(map[string]any)
	if !ok || len(services) == 0 {
		return fmt.Errorf("compose spec: services must be a non-empty mapping")
	}
	for name, raw := range services {
		svc, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("compose spec: service %q must be a mapping", name)
		}
		_, hasImage := svc["image"]
		_, hasBuild := svc["build"]
		if !hasImage && !hasBuild {
			return fmt.Errorf("compose spec: service %q needs image or build", name)
		}
	}
	return nil
}

// Marshal serializes a rendered compose spec as YAML with a stable key
// order, so re-rendering an unchanged deployment produces a
// byte-identical file.
func Marshal(data map[string]any) ([]byte, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	root, err := yamlNode(data, true)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode compose spec: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EmitFile validates and serializes data, then places it on the
// execution host, creating parent directories. Going through the
// executor keeps remote deployments working: the file must live where
// docker compose runs, not where this process runs.
func (e *Executor) EmitFile(ctx context.Context, data map[string]any, path string) error {
	raw, err := Marshal(data)
	if err != nil {
		return err
	}
	if err := e.exec.WriteFile(ctx, path, raw, 0o644); err != nil {
		return fmt.Errorf("write compose file %s: %w", path, err)
	}
	e.log.Debug().Str("path", path).Int("bytes", len(raw)).Msg("compose file written")
	return nil
}

func yamlNode(v any, top bool) (*yaml.Node, error) {
	switch t := v.(type) {
	case map[string]any:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range orderedKeys(t, top) {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			valNode, err := yamlNode(t[k], false)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valNode)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			child, err := yamlNode(item, false)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(v); err != nil {
			return nil, fmt.Errorf("encode value %v: %w", v, err)
		}
		return node, nil
	}
}

func orderedKeys(m map[string]any, top bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if !top {
		sort.Strings(keys)
		return keys
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iKnown := topLevelOrder[keys[i]]
		rj, jKnown := topLevelOrder[keys[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
