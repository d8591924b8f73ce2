package stack

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/windflowlabs/windflow/pkg/types"
)

// ValidateUserValues checks user-provided variable values against the
// stack's schema before anything is rendered or persisted. Unknown
// variable names are rejected; schema violations are collected so the
// caller can surface them all at once.
func ValidateUserValues(stack *types.Stack, values map[string]any) error {
	defs := make(map[string]*types.VariableDef, len(stack.Variables))
	for i := range stack.Variables {
		defs[stack.Variables[i].Name] = &stack.Variables[i]
	}

	var problems []string
	for name := range values {
		if _, ok := defs[name]; !ok {
			problems = append(problems, fmt.Sprintf("unknown variable %q", name))
		}
	}

	for i := range stack.Variables {
		def := &stack.Variables[i]
		if !dependencySatisfied(def, defs, values) {
			continue
		}

		value, provided := values[def.Name]
		if !provided {
			if def.Required && def.Default == nil {
				problems = append(problems, fmt.Sprintf("variable %q is required", def.Name))
			}
			continue
		}
		if err := checkValue(def, value); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid variable values: %s", strings.Join(problems, "; "))
	}
	return nil
}

// dependencySatisfied reports whether def's depends_on gate is open:
// either no dependency, or the dependency's effective value is truthy.
func dependencySatisfied(def *types.VariableDef, defs map[string]*types.VariableDef, values map[string]any) bool {
	if def.DependsOn == "" {
		return true
	}
	value, ok := values[def.DependsOn]
	if !ok {
		if dep, known := defs[def.DependsOn]; known {
			value = dep.Default
		}
	}
	return truthy(value)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func checkValue(def *types.VariableDef, value any) error {
	switch def.Type {
	case types.VariableTypeString, types.VariableTypePassword, types.VariableTypeTextarea:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("variable %q must be a string, got %T", def.Name, value)
		}
		if def.MinLength != nil && len(s) < *def.MinLength {
			return fmt.Errorf("variable %q must be at least %d characters", def.Name, *def.MinLength)
		}
		if def.MaxLength != nil && len(s) > *def.MaxLength {
			return fmt.Errorf("variable %q must be at most %d characters", def.Name, *def.MaxLength)
		}
		if def.Pattern != "" {
			re, err := regexp.Compile(def.Pattern)
			if err != nil {
				return fmt.Errorf("variable %q has an invalid pattern: %v", def.Name, err)
			}
			if !re.MatchString(s) {
				return fmt.Errorf("variable %q does not match pattern %s", def.Name, def.Pattern)
			}
		}

	case types.VariableTypeInteger:
		n, ok := asNumber(value)
		if !ok || n != float64(int64(n)) {
			return fmt.Errorf("variable %q must be an integer, got %v", def.Name, value)
		}
		if err := checkRange(def, n); err != nil {
			return err
		}

	case types.VariableTypeNumber:
		n, ok := asNumber(value)
		if !ok {
			return fmt.Errorf("variable %q must be a number, got %T", def.Name, value)
		}
		if err := checkRange(def, n); err != nil {
			return err
		}

	case types.VariableTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("variable %q must be a boolean, got %T", def.Name, value)
		}
	}

	if len(def.Enum) > 0 && !enumContains(def.Enum, value) {
		return fmt.Errorf("variable %q must be one of %v", def.Name, def.Enum)
	}
	return nil
}

func checkRange(def *types.VariableDef, n float64) error {
	if def.Minimum != nil && n < *def.Minimum {
		return fmt.Errorf("variable %q must be >= %v", def.Name, *def.Minimum)
	}
	if def.Maximum != nil && n > *def.Maximum {
		return fmt.Errorf("variable %q must be <= %v", def.Name, *def.Maximum)
	}
	return nil
}

// asNumber accepts the numeric representations JSON and YAML decoding
// produce.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}

// enumContains compares loosely across int/float encodings so an enum
// of [5432, 5433] accepts a JSON-decoded 5432.0.
func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		if e == value {
			return true
		}
		en, eok := asNumber(e)
		vn, vok := asNumber(value)
		if eok && vok && en == vn {
			return true
		}
	}
	return false
}
