package assertions

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownPatternError is returned when a pattern token names a predicate that
// is not registered.
type UnknownPatternError struct {
	Name string
}

func (e *UnknownPatternError) Error() string {
	return fmt.Sprintf("unknown pattern %q", e.Name)
}

// InvalidRegexError is returned when a regex token does not compile.
type InvalidRegexError struct {
	Expr  string
	Cause error
}

func (e *InvalidRegexError) Error() string {
	return fmt.Sprintf("invalid regex %q: %v", e.Expr, e.Cause)
}

func (e *InvalidRegexError) Unwrap() error {
	return e.Cause
}

// MatchError is returned when an actual value cannot be matched at all, for
// example a regex applied to an object.
type MatchError struct {
	Token  string
	Actual any
	Reason string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("cannot match %s against %s: %s", e.Token, kindName(e.Actual), e.Reason)
}

// PathNotFoundError reports that a path segment could not be followed in the
// actual response.
type PathNotFoundError struct {
	Path    Path
	Segment int
	Reason  string
}

func (e *PathNotFoundError) Error() string {
	at := e.Path
	if e.Segment >= 0 && e.Segment < len(e.Path) {
		at = e.Path[:e.Segment+1]
	}
	return fmt.Sprintf("path %s not found: %s at %s", e.Path, e.Reason, at)
}

// SchemaError carries the violations reported by the schema library.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

// IsDefinitionError reports whether err comes from a malformed test
// definition rather than from response data.
func IsDefinitionError(err error) bool {
	var unknown *UnknownPatternError
	var invalid *InvalidRegexError
	return errors.As(err, &unknown) || errors.As(err, &invalid)
}
