package assertions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ohler55/ojg/jp"
)

// Comparison names the check a Rule applies to its located value.
type Comparison string

const (
	CompareEquals         Comparison = "equals"
	CompareNotEquals      Comparison = "not_equals"
	CompareContains       Comparison = "contains"
	CompareNotContains    Comparison = "not_contains"
	CompareExists         Comparison = "exists"
	CompareNotExists      Comparison = "not_exists"
	CompareMatches        Comparison = "matches"
	CompareGreaterThan    Comparison = "greater_than"
	CompareGreaterOrEqual Comparison = "greater_or_equal"
	CompareLessThan       Comparison = "less_than"
	CompareLessOrEqual    Comparison = "less_or_equal"
	CompareExpression     Comparison = "expression"
	ComparePattern        Comparison = "pattern"
	CompareType           Comparison = "type"
)

var comparisons = map[Comparison]bool{
	CompareEquals: true, CompareNotEquals: true,
	CompareContains: true, CompareNotContains: true,
	CompareExists: true, CompareNotExists: true,
	CompareMatches:     true,
	CompareGreaterThan: true, CompareGreaterOrEqual: true,
	CompareLessThan: true, CompareLessOrEqual: true,
	CompareExpression: true, ComparePattern: true, CompareType: true,
}

var typeNames = map[string]bool{
	"null": true, "boolean": true, "string": true, "number": true,
	"integer": true, "object": true, "array": true,
}

// Rule is one validation_rules entry: a field path, an expected value and a
// comparison. Fields starting with "$" are JSONPath expressions; anything
// else is a dotted path such as "data.items.0.id".
type Rule struct {
	Field      string
	Comparison Comparison
	Expected   *Node

	path     Path
	jsonPath jp.Expr
	program  *vm.Program
}

// NewRule validates and compiles a rule. An empty comparison means equals.
func NewRule(field string, expected any, comparison string) (*Rule, error) {
	cmp := Comparison(strings.ToLower(strings.TrimSpace(comparison)))
	if cmp == "" {
		cmp = CompareEquals
	}
	if !comparisons[cmp] {
		return nil, fmt.Errorf("rule %q: unknown comparison %q", field, comparison)
	}

	r := &Rule{Field: field, Comparison: cmp, Expected: Compile(expected)}

	if strings.HasPrefix(field, "$") && field != "$" {
		x, err := jp.ParseString(field)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid JSONPath: %w", field, err)
		}
		r.jsonPath = x
	} else {
		r.path = ParseDottedPath(field)
	}

	switch cmp {
	case CompareExpression:
		src, ok := expected.(string)
		if !ok {
			return nil, fmt.Errorf("rule %q: expression must be a string", field)
		}
		if err := r.compileExpression(src); err != nil {
			return nil, err
		}
	case CompareMatches:
		s, ok := expected.(string)
		if !ok {
			return nil, fmt.Errorf("rule %q: matches needs a regular expression string", field)
		}
		r.Expected = newRegexNode(strings.TrimPrefix(s, RegexPrefix))
	case ComparePattern:
		s, ok := expected.(string)
		if !ok || strings.TrimPrefix(s, PatternPrefix) == "" {
			return nil, fmt.Errorf("rule %q: pattern needs a pattern name", field)
		}
		r.Expected = Compile(PatternPrefix + strings.TrimPrefix(s, PatternPrefix))
	case CompareType:
		s, ok := expected.(string)
		if !ok || !typeNames[strings.ToLower(s)] {
			return nil, fmt.Errorf("rule %q: type must be one of null, boolean, string, number, integer, object or array", field)
		}
		r.Expected = Compile(strings.ToLower(s))
	}
	return r, nil
}

func (r *Rule) compileExpression(src string) error {
	program, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return fmt.Errorf("rule %q: failed to compile expression %q: %w", r.Field, src, err)
	}
	r.program = program
	return nil
}

// Resolve expands template placeholders in the expected value.
func (r *Rule) Resolve(resolver ValueResolver) (*Rule, error) {
	if r.Comparison == CompareExpression {
		return r, nil
	}
	expected, err := r.Expected.Resolve(resolver)
	if err != nil {
		return nil, err
	}
	out := *r
	out.Expected = expected
	return &out, nil
}

// DisplayPath is the rule location as shown in reports.
func (r *Rule) DisplayPath() string {
	if r.jsonPath != nil {
		return r.Field
	}
	return r.path.String()
}

func (r *Rule) locate(actual any) (any, bool, error) {
	if r.jsonPath != nil {
		// ojg filters compare native numbers, not json.Number.
		results := r.jsonPath.Get(PlainNumbers(actual))
		switch len(results) {
		case 0:
			return nil, false, &PathNotFoundError{Path: Path{Key(r.Field)}, Segment: 0, Reason: "JSONPath returned no results"}
		case 1:
			return results[0], true, nil
		default:
			return results, true, nil
		}
	}
	v, err := Navigate(actual, r.path)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// EvaluateRule applies a single rule to a decoded response body.
func (c *Comparator) EvaluateRule(r *Rule, actual any) *Verdict {
	verdict := Pass()
	located, found, err := r.locate(actual)
	where := r.DisplayPath()

	switch r.Comparison {
	case CompareExists:
		if !found {
			verdict.addMismatch(Mismatch{Path: where, Reason: "expected field to exist", Cause: err})
		}
		return verdict
	case CompareNotExists:
		if found {
			verdict.addMismatch(Mismatch{Path: where, Actual: located, Reason: "expected field to be absent"})
		}
		return verdict
	}

	if !found {
		verdict.addMismatch(Mismatch{Path: where, Expected: r.Expected.Raw(), Reason: err.Error(), Cause: err})
		return verdict
	}

	switch r.Comparison {
	case CompareEquals, CompareMatches, ComparePattern:
		return c.compareLocated(r, located)
	case CompareType:
		want, _ := r.Expected.Raw().(string)
		got := kindName(located)
		if want == "integer" {
			if _, integral := exactInt(located); integral {
				got = "integer"
			}
		}
		if got != want {
			verdict.addMismatch(Mismatch{Path: where, Expected: want, Actual: located, Reason: fmt.Sprintf("expected type %s, got %s", want, kindName(located))})
		}
	case CompareNotEquals:
		trial := c.compareLocated(r, located)
		if trial.Status == StatusError {
			return trial
		}
		if trial.Passed() {
			verdict.addMismatch(Mismatch{Path: where, Expected: r.Expected.Raw(), Actual: located, Reason: "expected values to differ"})
		}
	case CompareContains, CompareNotContains:
		ok, err := c.contains(located, r.Expected)
		if err != nil {
			return Errored(err)
		}
		want := r.Comparison == CompareContains
		if ok != want {
			reason := "expected value to contain"
			if !want {
				reason = "expected value not to contain"
			}
			verdict.addMismatch(Mismatch{Path: where, Expected: r.Expected.Raw(), Actual: located, Reason: fmt.Sprintf("%s %v", reason, r.Expected.Raw())})
		}
	case CompareGreaterThan, CompareGreaterOrEqual, CompareLessThan, CompareLessOrEqual:
		got, okA := numeric(located)
		want, okE := numeric(r.Expected.Raw())
		if !okE {
			return Errored(fmt.Errorf("rule %q: %v is not a number", r.Field, r.Expected.Raw()))
		}
		if !okA {
			verdict.addMismatch(Mismatch{Path: where, Expected: r.Expected.Raw(), Actual: located, Reason: fmt.Sprintf("expected a number, got %s", kindName(located))})
			return verdict
		}
		if !orderHolds(r.Comparison, got, want) {
			verdict.addMismatch(Mismatch{Path: where, Expected: r.Expected.Raw(), Actual: located, Reason: fmt.Sprintf("expected value %s %v", strings.ReplaceAll(string(r.Comparison), "_", " "), r.Expected.Raw())})
		}
	case CompareExpression:
		out, err := expr.Run(r.program, map[string]any{"value": PlainNumbers(located), "field": r.Field})
		if err != nil {
			verdict.addMismatch(Mismatch{Path: where, Actual: located, Reason: fmt.Sprintf("expression failed: %v", err), Cause: err})
			return verdict
		}
		if pass, _ := out.(bool); !pass {
			verdict.addMismatch(Mismatch{Path: where, Expected: r.Expected.Raw(), Actual: located, Reason: "expression evaluated to false"})
		}
	}
	return verdict
}

func (c *Comparator) compareLocated(r *Rule, located any) *Verdict {
	if r.jsonPath != nil {
		verdict := Pass()
		c.walker(ModeFull, verdict).walk(r.Expected, located, Path{})
		for i := range verdict.Mismatches {
			verdict.Mismatches[i].Path = r.Field + strings.TrimPrefix(verdict.Mismatches[i].Path, "$")
		}
		return verdict
	}
	return c.CompareAt(r.Expected, located, r.path)
}

// contains reports whether located contains expected: a substring for
// strings, a matching element for arrays and a key or matching subset for
// objects.
func (c *Comparator) contains(located any, expected *Node) (bool, error) {
	switch v := located.(type) {
	case string:
		s, ok := coerceString(expected.Raw())
		return ok && strings.Contains(v, s), nil
	case []any:
		for _, item := range v {
			trial := Pass()
			c.walker(ModePartial, trial).walk(expected, item, Path{})
			if trial.Status == StatusError {
				return false, trial.Err
			}
			if trial.Passed() {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		if expected.Kind == KindMapping {
			trial := Pass()
			c.walker(ModePartial, trial).walk(expected, v, Path{})
			if trial.Status == StatusError {
				return false, trial.Err
			}
			return trial.Passed(), nil
		}
		key, ok := coerceString(expected.Raw())
		if !ok {
			return false, nil
		}
		_, exists := v[key]
		return exists, nil
	default:
		s, ok := coerceString(located)
		e, eok := coerceString(expected.Raw())
		return ok && eok && strings.Contains(s, e), nil
	}
}

// numeric returns v as a number, accepting numeric strings as json.Number so
// their digits survive exact comparison.
func numeric(v any) (any, bool) {
	if _, ok := toNumber(v); ok {
		return v, true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return json.Number(s), true
		}
	}
	return nil, false
}

func orderHolds(c Comparison, got, want any) bool {
	order, ok := compareNumbers(got, want)
	if !ok {
		return false
	}
	switch c {
	case CompareGreaterThan:
		return order > 0
	case CompareGreaterOrEqual:
		return order >= 0
	case CompareLessThan:
		return order < 0
	case CompareLessOrEqual:
		return order <= 0
	}
	return false
}
