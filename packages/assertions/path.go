package assertions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one step of a Path: a mapping key or a sequence index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns a key segment.
func Key(k string) Segment {
	return Segment{Key: k}
}

// Index returns an index segment.
func Index(i int) Segment {
	return Segment{Index: i, IsIndex: true}
}

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path locates a subtree of a JSON-like value.
type Path []Segment

// Key returns a new path with k appended. The receiver is never modified.
func (p Path) Key(k string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Key(k))
}

// Index returns a new path with i appended.
func (p Path) Index(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Index(i))
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// String renders the path as $.user.contacts[0].phone.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("$")
	for _, s := range p {
		switch {
		case s.IsIndex:
			fmt.Fprintf(&b, "[%d]", s.Index)
		case identPattern.MatchString(s.Key):
			b.WriteString(".")
			b.WriteString(s.Key)
		default:
			fmt.Fprintf(&b, "[%q]", s.Key)
		}
	}
	return b.String()
}

// ParsePath builds a Path from a decoded validation_path value. It accepts a
// sequence of keys and indices, or a dotted string such as "user.roles.0".
func ParsePath(v any) (Path, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseDottedPath(val), nil
	case []any:
		path := make(Path, 0, len(val))
		for i, item := range val {
			switch seg := item.(type) {
			case string:
				path = append(path, Key(seg))
			case int:
				path = append(path, Index(seg))
			case int64:
				path = append(path, Index(int(seg)))
			case uint64:
				path = append(path, Index(int(seg)))
			case float64:
				if seg != float64(int(seg)) {
					return nil, fmt.Errorf("path segment %d: %v is not an integer index", i, seg)
				}
				path = append(path, Index(int(seg)))
			default:
				return nil, fmt.Errorf("path segment %d: unsupported type %T", i, item)
			}
		}
		return path, nil
	case []string:
		path := make(Path, 0, len(val))
		for _, k := range val {
			path = append(path, Key(k))
		}
		return path, nil
	default:
		return nil, fmt.Errorf("validation path must be a list or a dotted string, got %T", v)
	}
}

// ParseDottedPath splits "a.b.0" into segments. Purely numeric parts become
// index segments; Navigate still accepts them as keys on mappings.
func ParseDottedPath(s string) Path {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = convertBracketNotation(s)
	if s == "" {
		return Path{}
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if i, err := strconv.Atoi(part); err == nil && i >= 0 {
			path = append(path, Index(i))
			continue
		}
		path = append(path, Key(part))
	}
	return path
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation converts "items[0].tags[1]" to "items.0.tags.1".
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

// Navigate follows path inside actual and returns the located value.
func Navigate(actual any, path Path) (any, error) {
	current := actual
	for i, seg := range path {
		switch node := current.(type) {
		case map[string]any:
			key := seg.Key
			if seg.IsIndex {
				key = strconv.Itoa(seg.Index)
			}
			v, ok := node[key]
			if !ok {
				return nil, &PathNotFoundError{Path: path, Segment: i, Reason: fmt.Sprintf("key %q not found", key)}
			}
			current = v
		case []any:
			idx := seg.Index
			if !seg.IsIndex {
				n, err := strconv.Atoi(seg.Key)
				if err != nil {
					return nil, &PathNotFoundError{Path: path, Segment: i, Reason: fmt.Sprintf("key %q used on an array", seg.Key)}
				}
				idx = n
			}
			if idx < 0 || idx >= len(node) {
				return nil, &PathNotFoundError{Path: path, Segment: i, Reason: fmt.Sprintf("index %d out of range (length %d)", idx, len(node))}
			}
			current = node[idx]
		default:
			return nil, &PathNotFoundError{Path: path, Segment: i, Reason: fmt.Sprintf("cannot descend into %s", kindName(current))}
		}
	}
	return current, nil
}
