package assertions

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	PatternPrefix = "pattern:"
	RegexPrefix   = "regex:"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	KindLiteral Kind = iota
	KindPattern
	KindRegex
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindPattern:
		return "pattern"
	case KindRegex:
		return "regex"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is a compiled expected value. Token recognition happens once, when the
// tree is compiled, and is never repeated during comparison.
type Node struct {
	Kind Kind

	// Value holds the scalar for KindLiteral.
	Value any
	// Token holds the pattern name for KindPattern and the expression for
	// KindRegex.
	Token string

	// Keys lists mapping keys in sorted order so mismatches are reported
	// deterministically.
	Keys   []string
	Fields map[string]*Node
	Items  []*Node

	re    *regexp.Regexp
	reErr error
}

// Compile converts a decoded YAML/JSON value into an expected tree. Strings
// starting with "pattern:" or "regex:" become tokens; every other value is a
// literal. A regex that does not compile is kept and reported when compared.
func Compile(v any) *Node {
	return compile(Normalize(v), true)
}

// Literal wraps v without token recognition. Containers are still walked
// structurally, but no string inside v is treated as a token.
func Literal(v any) *Node {
	return compile(Normalize(v), false)
}

func compile(v any, tokens bool) *Node {
	switch val := v.(type) {
	case map[string]any:
		n := &Node{Kind: KindMapping, Fields: make(map[string]*Node, len(val))}
		for k, child := range val {
			n.Keys = append(n.Keys, k)
			n.Fields[k] = compile(child, tokens)
		}
		sort.Strings(n.Keys)
		return n
	case []any:
		n := &Node{Kind: KindSequence, Items: make([]*Node, 0, len(val))}
		for _, child := range val {
			n.Items = append(n.Items, compile(child, tokens))
		}
		return n
	case string:
		if tokens {
			if name, ok := strings.CutPrefix(val, PatternPrefix); ok {
				return &Node{Kind: KindPattern, Token: strings.TrimSpace(name)}
			}
			if expr, ok := strings.CutPrefix(val, RegexPrefix); ok {
				return newRegexNode(expr)
			}
		}
		return &Node{Kind: KindLiteral, Value: val}
	default:
		return &Node{Kind: KindLiteral, Value: val}
	}
}

func newRegexNode(expr string) *Node {
	n := &Node{Kind: KindRegex, Token: expr}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		n.reErr = &InvalidRegexError{Expr: expr, Cause: err}
		return n
	}
	n.re = re
	return n
}

// Normalize converts map[any]any values produced by some YAML decoders into
// map[string]any, recursively.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = Normalize(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = Normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = Normalize(child)
		}
		return out
	default:
		return v
	}
}

// Raw returns the value the node was compiled from, with tokens rendered back
// to their prefixed string form.
func (n *Node) Raw() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindPattern:
		return PatternPrefix + n.Token
	case KindRegex:
		return RegexPrefix + n.Token
	case KindMapping:
		out := make(map[string]any, len(n.Fields))
		for k, child := range n.Fields {
			out[k] = child.Raw()
		}
		return out
	case KindSequence:
		out := make([]any, len(n.Items))
		for i, child := range n.Items {
			out[i] = child.Raw()
		}
		return out
	default:
		return n.Value
	}
}

// String renders the node for mismatch messages.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case KindPattern, KindRegex:
		return fmt.Sprint(n.Raw())
	case KindMapping:
		return fmt.Sprintf("object with %d keys", len(n.Keys))
	case KindSequence:
		return fmt.Sprintf("array of length %d", len(n.Items))
	default:
		return fmt.Sprintf("%v", n.Value)
	}
}

// ValueResolver expands template placeholders inside a single value.
type ValueResolver interface {
	ResolveValue(v any) (any, error)
}

// Resolve returns a copy of the tree with every template placeholder expanded
// by r. Substituted literal values are not re-read as tokens, so a bound value
// that happens to start with "pattern:" is still compared literally. Token
// text is expanded too and the regex is recompiled.
func (n *Node) Resolve(r ValueResolver) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case KindMapping:
		out := &Node{Kind: KindMapping, Keys: append([]string(nil), n.Keys...), Fields: make(map[string]*Node, len(n.Fields))}
		for _, k := range n.Keys {
			child, err := n.Fields[k].Resolve(r)
			if err != nil {
				return nil, err
			}
			out.Fields[k] = child
		}
		return out, nil
	case KindSequence:
		out := &Node{Kind: KindSequence, Items: make([]*Node, 0, len(n.Items))}
		for _, item := range n.Items {
			child, err := item.Resolve(r)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, child)
		}
		return out, nil
	case KindPattern:
		resolved, err := resolveToken(r, n.Token)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindPattern, Token: strings.TrimSpace(resolved)}, nil
	case KindRegex:
		resolved, err := resolveToken(r, n.Token)
		if err != nil {
			return nil, err
		}
		if resolved == n.Token {
			return n, nil
		}
		return newRegexNode(resolved), nil
	default:
		s, ok := n.Value.(string)
		if !ok || !strings.Contains(s, "${") {
			return n, nil
		}
		v, err := r.ResolveValue(s)
		if err != nil {
			return nil, err
		}
		return Literal(v), nil
	}
}

func resolveToken(r ValueResolver, token string) (string, error) {
	if !strings.Contains(token, "${") {
		return token, nil
	}
	v, err := r.ResolveValue(token)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}
