package env

import (
	"strconv"
	"strings"
	"sync"
)

// Bindings maps variable names to values for one run. A single Bindings is
// shared by reference across every file and test case of the run, so values
// declared by a precondition or extract_variables stay visible to later
// cases.
type Bindings struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewBindings() *Bindings {
	return &Bindings{values: make(map[string]any)}
}

// Declare binds name to value, replacing any earlier declaration.
func (b *Bindings) Declare(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[name] = value
}

// DeclareAll declares every entry of vars.
func (b *Bindings) DeclareAll(vars map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range vars {
		b.values[k] = v
	}
}

// Bind adds name only when it is not bound yet and reports whether it did.
func (b *Bindings) Bind(name string, value any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.values[name]; exists {
		return false
	}
	b.values[name] = value
	return true
}

// Lookup resolves a reference such as "user" or "user.address.city". The
// full reference is tried as a name first, then the longest bound prefix is
// followed field by field into maps and lists.
func (b *Bindings) Lookup(ref string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if v, ok := b.values[ref]; ok {
		return v, true
	}

	parts := strings.Split(ref, ".")
	for i := len(parts) - 1; i > 0; i-- {
		root, ok := b.values[strings.Join(parts[:i], ".")]
		if !ok {
			continue
		}
		if v, ok := traverse(root, parts[i:]); ok {
			return v, true
		}
	}
	return nil, false
}

func traverse(v any, fields []string) (any, bool) {
	current := v
	for _, f := range fields {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[f]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := node[f]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(f)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
