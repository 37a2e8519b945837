package assertions

import (
	"fmt"
	"strings"
)

// Mode selects how strictly an expected tree must match the actual tree.
type Mode string

const (
	ModeFull     Mode = "full"
	ModePartial  Mode = "partial"
	ModeSpecific Mode = "specific"
)

// ParseMode converts a validation_mode value. An empty string is full mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModePartial:
		return ModePartial, nil
	case ModeSpecific:
		return ModeSpecific, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q (want full, partial or specific)", s)
	}
}

// sequencePolicy decides how the elements of an expected sequence are
// matched against an actual sequence. It is the only part of the walk that
// differs between modes.
type sequencePolicy func(w *walker, expected *Node, actual []any, path Path)

// Comparator walks expected and actual trees and collects mismatches.
type Comparator struct {
	matcher  *Matcher
	policies map[Mode]sequencePolicy
}

type ComparatorOption func(*Comparator)

// WithRegistry makes the comparator resolve pattern tokens in registry.
func WithRegistry(registry *Registry) ComparatorOption {
	return func(c *Comparator) {
		c.matcher = NewMatcher(registry)
	}
}

func NewComparator(opts ...ComparatorOption) *Comparator {
	c := &Comparator{
		matcher: NewMatcher(nil),
		policies: map[Mode]sequencePolicy{
			ModeFull:    indexWise,
			ModePartial: anyElement,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare checks actual against expected under mode. path is only consulted
// in specific mode, where it locates the single value to check. The located
// value is compared with full-mode rules.
func (c *Comparator) Compare(expected *Node, actual any, mode Mode, path Path) *Verdict {
	verdict := Pass()
	if expected == nil {
		return verdict
	}

	switch mode {
	case ModeSpecific:
		located, err := Navigate(actual, path)
		if err != nil {
			verdict.addMismatch(Mismatch{
				Path:     path.String(),
				Expected: expected.Raw(),
				Reason:   err.Error(),
				Cause:    err,
			})
			return verdict
		}
		c.walker(ModeFull, verdict).walk(expected, located, path)
	case ModePartial:
		c.walker(ModePartial, verdict).walk(expected, actual, Path{})
	default:
		c.walker(ModeFull, verdict).walk(expected, actual, Path{})
	}
	return verdict
}

// CompareAt compares a value that was already located at path, using
// full-mode rules and reporting mismatches relative to path.
func (c *Comparator) CompareAt(expected *Node, located any, path Path) *Verdict {
	verdict := Pass()
	c.walker(ModeFull, verdict).walk(expected, located, path)
	return verdict
}

func (c *Comparator) walker(mode Mode, verdict *Verdict) *walker {
	return &walker{c: c, mode: mode, policy: c.policies[mode], verdict: verdict}
}

type walker struct {
	c       *Comparator
	mode    Mode
	policy  sequencePolicy
	verdict *Verdict
}

func (w *walker) walk(expected *Node, actual any, path Path) {
	switch expected.Kind {
	case KindMapping:
		obj, ok := actual.(map[string]any)
		if !ok {
			w.typeMismatch("object", actual, path)
			return
		}
		// Keys present only in actual are ignored in every mode.
		for _, key := range expected.Keys {
			child := expected.Fields[key]
			value, ok := obj[key]
			if !ok {
				w.verdict.addMismatch(Mismatch{
					Path:     path.Key(key).String(),
					Expected: child.Raw(),
					Reason:   "missing key",
				})
				continue
			}
			w.walk(child, value, path.Key(key))
		}
	case KindSequence:
		arr, ok := actual.([]any)
		if !ok {
			w.typeMismatch("array", actual, path)
			return
		}
		w.policy(w, expected, arr, path)
	default:
		w.leaf(expected, actual, path)
	}
}

func (w *walker) leaf(expected *Node, actual any, path Path) {
	if isContainer(actual) {
		want := "scalar"
		if expected.Kind == KindLiteral {
			want = kindName(expected.Value)
		}
		w.typeMismatch(want, actual, path)
		return
	}

	ok, err := w.c.matcher.Match(expected, actual)
	if err != nil {
		m := Mismatch{Path: path.String(), Expected: expected.Raw(), Actual: actual, Reason: err.Error(), Cause: err}
		if IsDefinitionError(err) {
			w.verdict.Mismatches = append(w.verdict.Mismatches, m)
			w.verdict.setError(err)
			return
		}
		w.verdict.addMismatch(m)
		return
	}
	if ok {
		return
	}

	var reason string
	switch expected.Kind {
	case KindPattern:
		reason = fmt.Sprintf("value does not match pattern %q", expected.Token)
	case KindRegex:
		reason = fmt.Sprintf("value does not match regex %q", expected.Token)
	default:
		if want, got := kindName(expected.Value), kindName(actual); want != got {
			reason = fmt.Sprintf("type mismatch: expected %s, got %s", want, got)
		} else {
			reason = "value mismatch"
		}
	}
	w.verdict.addMismatch(Mismatch{Path: path.String(), Expected: expected.Raw(), Actual: actual, Reason: reason})
}

func (w *walker) typeMismatch(want string, actual any, path Path) {
	w.verdict.addMismatch(Mismatch{
		Path:     path.String(),
		Expected: want,
		Actual:   kindName(actual),
		Reason:   fmt.Sprintf("type mismatch: expected %s, got %s", want, kindName(actual)),
	})
}

// indexWise compares element i with element i. A length difference is
// always a mismatch; the overlapping elements are still compared so every
// divergence is reported.
func indexWise(w *walker, expected *Node, actual []any, path Path) {
	if len(expected.Items) != len(actual) {
		w.verdict.addMismatch(Mismatch{
			Path:     path.String(),
			Expected: len(expected.Items),
			Actual:   len(actual),
			Reason:   fmt.Sprintf("length mismatch: expected %d elements, got %d", len(expected.Items), len(actual)),
		})
	}
	n := min(len(expected.Items), len(actual))
	for i := 0; i < n; i++ {
		w.walk(expected.Items[i], actual[i], path.Index(i))
	}
}

// anyElement requires each expected element to match at least one actual
// element. Actual elements may be reused and extra actual elements are
// ignored.
func anyElement(w *walker, expected *Node, actual []any, path Path) {
	for i, item := range expected.Items {
		matched := false
		for j, candidate := range actual {
			trial := Pass()
			(&walker{c: w.c, mode: w.mode, policy: w.policy, verdict: trial}).walk(item, candidate, path.Index(j))
			if trial.Status == StatusError {
				w.verdict.Mismatches = append(w.verdict.Mismatches, trial.Mismatches...)
				w.verdict.setError(trial.Err)
				return
			}
			if trial.Passed() {
				matched = true
				break
			}
		}
		if !matched {
			w.verdict.addMismatch(Mismatch{
				Path:     path.Index(i).String(),
				Expected: item.Raw(),
				Reason:   fmt.Sprintf("no element of the actual array (length %d) matches expected element %d", len(actual), i),
			})
		}
	}
}
