package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/types"
)

var (
	exprRe  = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
	identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	callRe  = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\((.*)\)$`)
)

// Render recursively walks a template and evaluates every string leaf
// as a restricted expression: {{ name }} substitutions from vars plus
// the fixed generator library. Unknown names and unparsable
// expressions are non-fatal (the original text stays, a warning is
// logged); a generator call that parses but fails to evaluate aborts
// with an error.
//
// Generators are deliberately non-deterministic, so callers must
// render once and persist the result; re-rendering produces new
// secrets.
func Render(template any, vars map[string]any) (any, error) {
	switch v := template.(type) {
	case string:
		return RenderString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := Render(val, vars)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			rendered, err := Render(val, vars)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		// Non-string scalars pass through untouched.
		return template, nil
	}
}

// RenderString evaluates one string leaf. A leaf that consists of
// exactly one expression keeps the expression's type (ports stay
// ints); anything embedded in surrounding text stringifies.
func RenderString(s string, vars map[string]any) (any, error) {
	matches := exprRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// Single expression spanning the whole (trimmed) string: return
	// the typed value.
	if len(matches) == 1 {
		m := matches[0]
		if strings.TrimSpace(s[:m[0]]) == "" && strings.TrimSpace(s[m[1]:]) == "" {
			val, replaced, err := evalExpr(s[m[2]:m[3]], vars)
			if err != nil {
				return nil, err
			}
			if !replaced {
				return s, nil
			}
			return val, nil
		}
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		val, replaced, err := evalExpr(s[m[2]:m[3]], vars)
		if err != nil {
			return nil, err
		}
		if replaced {
			b.WriteString(formatValue(val))
		} else {
			b.WriteString(s[m[0]:m[1]]) // keep the original {{ ... }} text
		}
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// evalExpr evaluates the inside of one {{ }} span. replaced=false
// means the caller should keep the original text (unknown variable or
// syntax problem); err!=nil means a parsed generator failed.
func evalExpr(expr string, vars map[string]any) (val any, replaced bool, err error) {
	expr = strings.TrimSpace(expr)
	logger := log.WithComponent("render")

	if identRe.MatchString(expr) {
		if v, ok := vars[expr]; ok {
			return v, true, nil
		}
		logger.Warn().Str("variable", expr).Msg("unknown template variable, leaving unchanged")
		return nil, false, nil
	}

	if m := callRe.FindStringSubmatch(expr); m != nil {
		fn, ok := generators[m[1]]
		if !ok {
			logger.Warn().Str("function", m[1]).Msg("unknown template function, leaving unchanged")
			return nil, false, nil
		}
		args, perr := parseArgs(m[2])
		if perr != nil {
			logger.Warn().Str("expression", expr).Err(perr).Msg("unparsable arguments, leaving unchanged")
			return nil, false, nil
		}
		out, ferr := fn(args)
		if ferr != nil {
			return nil, false, fmt.Errorf("%s: %w", m[1], ferr)
		}
		return out, true, nil
	}

	logger.Warn().Str("expression", expr).Msg("unparsable template expression, leaving unchanged")
	return nil, false, nil
}

// parseArgs splits a comma-separated literal list: quoted strings,
// integers, floats and booleans. Quotes may be single or double.
func parseArgs(raw string) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string literal")
	}
	parts = append(parts, raw[start:])

	args := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := parseLiteral(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func parseLiteral(s string) (any, error) {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1], nil
		}
	}
	switch s {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported literal %q", s)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MergeVariables builds the render context for a deployment: each
// stack variable starts from its default, user values overlay, and
// the merged values are rendered in declaration order so generators
// resolve and later variables can reference earlier ones.
func MergeVariables(stack *types.Stack, userValues map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(stack.Variables))
	for _, def := range stack.Variables {
		value := def.Default
		if uv, ok := userValues[def.Name]; ok {
			value = uv
		}
		rendered, err := Render(value, merged)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", def.Name, err)
		}
		merged[def.Name] = rendered
	}
	return merged, nil
}
