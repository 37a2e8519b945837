package assertions

import (
	"net/netip"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Predicate reports whether an actual value satisfies a named pattern.
type Predicate func(actual any) bool

// Registry holds named pattern predicates.
type Registry struct {
	mu       sync.RWMutex
	patterns map[string]Predicate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{patterns: make(map[string]Predicate)}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared registry with every built-in pattern.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.registerDefaults()
	})
	return defaultRegistry
}

// WithBuiltins returns a fresh registry pre-populated with the built-in
// patterns, safe to extend without affecting DefaultRegistry.
func WithBuiltins() *Registry {
	r := NewRegistry()
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.patterns["integer"] = patInteger
	r.patterns["float"] = patFloat
	r.patterns["name"] = stringRegex(nameRe)
	r.patterns["email"] = stringRegex(emailRe)
	r.patterns["phone_us"] = stringRegex(phoneUSRe)
	r.patterns["date_mm_dd_yy"] = dateLayout(dateMDYRe, "01/02/06")
	r.patterns["date_yyyy_mm_dd"] = dateLayout(dateYMDRe, "2006-01-02")
	r.patterns["time_24hour"] = dateLayout(time24Re, "15:04")
	r.patterns["time_12hour"] = patTime12
	r.patterns["string"] = patString
	r.patterns["word"] = stringRegex(alphaRe)
	r.patterns["alpha"] = stringRegex(alphaRe)
	r.patterns["alphanumeric"] = stringRegex(alnumRe)
	r.patterns["alphanumeric_special"] = stringRegex(alnumSpecialRe)
	r.patterns["uuid"] = patUUID
	r.patterns["url"] = patURL
	r.patterns["ipv4"] = patIPv4
	r.patterns["ipv6"] = patIPv6
	r.patterns["credit_card"] = patCreditCard
}

// Register adds or replaces a named predicate.
func (r *Registry) Register(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns[name] = p
}

func (r *Registry) Lookup(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patterns[name]
	return p, ok
}

// Names returns the registered pattern names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.patterns))
	for name := range r.patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	nameRe         = regexp.MustCompile(`^[\p{L}][\p{L} '.-]+$`)
	emailRe        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[A-Za-z]{2,}$`)
	phoneUSRe      = regexp.MustCompile(`^(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}$`)
	dateMDYRe      = regexp.MustCompile(`^\d{2}/\d{2}/\d{2}$`)
	dateYMDRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	time24Re       = regexp.MustCompile(`^\d{2}:\d{2}$`)
	time12Re       = regexp.MustCompile(`^(0?[1-9]|1[0-2]):[0-5]\d ?([AaPp][Mm])$`)
	alphaRe        = regexp.MustCompile(`^[A-Za-z]+$`)
	alnumRe        = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	alnumSpecialRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	integerRe      = regexp.MustCompile(`^-?\d+$`)
	floatRe        = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	cardRe         = regexp.MustCompile(`^\d{13,19}$`)
)

// stringRegex matches the string form of actual, so numeric values are
// checked by their decimal text.
func stringRegex(re *regexp.Regexp) Predicate {
	return func(actual any) bool {
		s, ok := coerceString(actual)
		return ok && re.MatchString(s)
	}
}

func dateLayout(re *regexp.Regexp, layout string) Predicate {
	return func(actual any) bool {
		s, ok := actual.(string)
		if !ok || !re.MatchString(s) {
			return false
		}
		_, err := time.Parse(layout, s)
		return err == nil
	}
}

func patInteger(actual any) bool {
	if _, ok := toNumber(actual); ok {
		_, integral := exactInt(actual)
		return integral
	}
	s, ok := actual.(string)
	return ok && integerRe.MatchString(s)
}

func patFloat(actual any) bool {
	if _, ok := toNumber(actual); ok {
		return true
	}
	s, ok := actual.(string)
	return ok && floatRe.MatchString(s)
}

func patString(actual any) bool {
	_, ok := actual.(string)
	return ok
}

func patTime12(actual any) bool {
	s, ok := actual.(string)
	return ok && time12Re.MatchString(s)
}

func patUUID(actual any) bool {
	s, ok := actual.(string)
	if !ok || len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func patURL(actual any) bool {
	s, ok := actual.(string)
	if !ok {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func patIPv4(actual any) bool {
	s, ok := actual.(string)
	if !ok {
		return false
	}
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}

func patIPv6(actual any) bool {
	s, ok := actual.(string)
	if !ok {
		return false
	}
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is6() && !addr.Is4In6()
}

func patCreditCard(actual any) bool {
	s, ok := actual.(string)
	if !ok {
		return false
	}
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	if !cardRe.MatchString(s) {
		return false
	}
	return luhn(s)
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Matcher evaluates a single compiled leaf against a single actual value.
type Matcher struct {
	registry *Registry
}

// NewMatcher returns a matcher backed by registry, or DefaultRegistry when
// registry is nil.
func NewMatcher(registry *Registry) *Matcher {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Matcher{registry: registry}
}

// Match evaluates node against actual. Containers are not leaves and always
// return false here; the Comparator walks them. The error is an
// UnknownPatternError or InvalidRegexError for a bad definition, or a
// MatchError when actual has no string form for a regex.
func (m *Matcher) Match(node *Node, actual any) (bool, error) {
	switch node.Kind {
	case KindLiteral:
		return literalEqual(node.Value, actual), nil
	case KindPattern:
		p, ok := m.registry.Lookup(node.Token)
		if !ok {
			return false, &UnknownPatternError{Name: node.Token}
		}
		return p(actual), nil
	case KindRegex:
		if node.reErr != nil {
			return false, node.reErr
		}
		s, ok := coerceString(actual)
		if !ok {
			return false, &MatchError{Token: RegexPrefix + node.Token, Actual: actual, Reason: "value has no string form"}
		}
		return node.re.MatchString(s), nil
	default:
		return false, nil
	}
}

// Matches compiles expected as a single leaf and matches it against actual
// using the default registry.
func Matches(expected any, actual any) (bool, error) {
	return NewMatcher(nil).Match(Compile(expected), actual)
}
