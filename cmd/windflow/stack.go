package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/windflowlabs/windflow/pkg/render"
	"github.com/windflowlabs/windflow/pkg/stack"
)

// Stack commands
var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Validate and render stack definitions",
}

var stackValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Parse a stack file and report its variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := stack.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s %s (%s) is valid\n", st.Name, st.Version, st.ID)
		if len(st.Variables) == 0 {
			return nil
		}
		fmt.Println("Variables:")
		for _, def := range st.Variables {
			required := ""
			if def.Required {
				required = " (required)"
			}
			fmt.Printf("  %-20s %s%s", def.Name, def.Type, required)
			if def.Default != nil {
				fmt.Printf(" default=%v", def.Default)
			}
			fmt.Println()
		}
		return nil
	},
}

var stackRenderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render a stack template with the given values",
	Long: `Render a stack template the way a deployment would: validate the
given values against the variable definitions, merge in defaults,
resolve the deployment name and print the rendered spec as YAML.

Values are set with --set name=value; value syntax is YAML, so
--set replicas=3 produces an integer and --set debug=true a boolean.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, _ := cmd.Flags().GetStringArray("set")
		name, _ := cmd.Flags().GetString("name")

		st, err := stack.LoadFile(args[0])
		if err != nil {
			return err
		}

		values, err := parseSetFlags(sets)
		if err != nil {
			return err
		}
		if err := stack.ValidateUserValues(st, values); err != nil {
			return err
		}
		vars, err := render.MergeVariables(st, values)
		if err != nil {
			return err
		}

		if name == "" {
			name = st.Name
			if st.DeploymentName != "" {
				rendered, err := render.RenderString(st.DeploymentName, vars)
				if err != nil {
					return fmt.Errorf("failed to render deployment name: %v", err)
				}
				name = strings.TrimSpace(fmt.Sprintf("%v", rendered))
			}
		}
		vars["deployment_name"] = name

		config, err := render.Render(st.Template, vars)
		if err != nil {
			return fmt.Errorf("failed to render template: %v", err)
		}

		out, err := yaml.Marshal(config)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

// parseSetFlags turns --set name=value pairs into typed values. The
// value side is parsed as YAML so numbers and booleans come out typed.
func parseSetFlags(sets []string) (map[string]any, error) {
	values := make(map[string]any, len(sets))
	for _, s := range sets {
		key, raw, found := strings.Cut(s, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", s)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid --set value %q: %v", s, err)
		}
		values[key] = v
	}
	return values, nil
}

func init() {
	stackCmd.AddCommand(stackValidateCmd)
	stackCmd.AddCommand(stackRenderCmd)

	stackRenderCmd.Flags().StringArray("set", nil, "Set a stack variable as name=value (repeatable)")
	stackRenderCmd.Flags().String("name", "", "Deployment name to render with")
}
