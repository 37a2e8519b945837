package env

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/builtin"
)

var (
	variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	wholePattern    = regexp.MustCompile(`^\$\{([^}]+)\}$`)
)

// UnboundVariableError is returned when a placeholder names a variable that
// has no binding at evaluation time.
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	if strings.HasPrefix(e.Name, "$") {
		return fmt.Sprintf("unbound variable %s: environment variable is not set", e.Name)
	}
	return fmt.Sprintf("unbound variable %q", e.Name)
}

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver expands ${...} placeholders against a Bindings. Placeholders may
// name a binding (${user} or ${user.address.city}), a process environment
// variable (${$HOME}) or a built-in call (${uuid()}).
type Resolver struct {
	bindings *Bindings
	funcs    *builtin.Registry
	warnFunc WarnFunc
}

func NewResolver(bindings *Bindings) *Resolver {
	if bindings == nil {
		bindings = NewBindings()
	}
	return &Resolver{
		bindings: bindings,
		funcs:    builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called for soft problems, such as a
// binding whose value cannot be rendered as text.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	if r.warnFunc != nil {
		r.warnFunc(format, args...)
	}
}

// Bindings returns the bindings this resolver reads.
func (r *Resolver) Bindings() *Bindings {
	return r.bindings
}

func (r *Resolver) evaluate(expr string) (any, error) {
	expr = strings.TrimSpace(expr)

	if name, ok := strings.CutPrefix(expr, "$"); ok {
		if val, found := os.LookupEnv(name); found {
			return val, nil
		}
		return nil, &UnboundVariableError{Name: expr}
	}

	if builtin.IsCall(expr) {
		v, err := r.funcs.Call(expr)
		if err != nil {
			return nil, fmt.Errorf("template ${%s}: %w", expr, err)
		}
		return v, nil
	}

	if v, ok := r.bindings.Lookup(expr); ok {
		return v, nil
	}
	return nil, &UnboundVariableError{Name: expr}
}

// ResolveString expands every placeholder in input. When input is exactly
// one placeholder the bound value is returned with its own type; otherwise
// the result is a string. Strings without placeholders are returned as-is.
func (r *Resolver) ResolveString(input string) (any, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	if m := wholePattern.FindStringSubmatch(input); m != nil {
		return r.evaluate(m[1])
	}

	var firstErr error
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if firstErr != nil {
			return match
		}
		v, err := r.evaluate(match[2 : len(match)-1])
		if err != nil {
			firstErr = err
			return match
		}
		return r.format(v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// ResolveText is ResolveString for places that need text, such as URLs and
// header values.
func (r *Resolver) ResolveText(input string) (string, error) {
	v, err := r.ResolveString(input)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return r.format(v), nil
}

// ResolveValue walks v and expands placeholders in every string it contains,
// including mapping keys.
func (r *Resolver) ResolveValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.ResolveString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			key, err := r.ResolveText(k)
			if err != nil {
				return nil, err
			}
			resolved, err := r.ResolveValue(child)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			resolved, err := r.ResolveValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// ResolveStringMap resolves header-style maps.
func (r *Resolver) ResolveStringMap(values map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		resolved, err := r.ResolveText(v)
		if err != nil {
			return nil, err
		}
		result[k] = resolved
	}
	return result, nil
}

// ResolveMap resolves a params- or data-style map.
func (r *Resolver) ResolveMap(values map[string]any) (map[string]any, error) {
	if values == nil {
		return nil, nil
	}
	v, err := r.ResolveValue(values)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func (r *Resolver) format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	case json.Number:
		return val.String()
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			r.warn("cannot render %T as text: %v", v, err)
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetUnresolvedVariables returns the names of unresolvable placeholders.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var unresolved []string
	for _, match := range variablePattern.FindAllStringSubmatch(input, -1) {
		_, err := r.evaluate(match[1])
		var unbound *UnboundVariableError
		if errors.As(err, &unbound) {
			unresolved = append(unresolved, unbound.Name)
		}
	}
	return unresolved
}
