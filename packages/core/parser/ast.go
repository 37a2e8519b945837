package parser

import (
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
)

// File is one loaded test definition file.
type File struct {
	Path    string
	BaseURL string
	Tags    []string
	// Variables holds the file's variables and testData sections.
	Variables map[string]any
	TestCases []*TestCase
	// Flat is set for files written as a bare list of cases.
	Flat bool
}

// TestCase is a single normalized test definition. Both input formats load
// into this shape.
type TestCase struct {
	Name        string
	Description string
	Method      string
	URL         string
	Headers     map[string]string
	Params      map[string]any
	Data        any

	// ExpectedStatus is the required HTTP status; zero means unchecked.
	ExpectedStatus   int
	ExpectedResponse *assertions.Node
	Schema           any
	ValidationMode   assertions.Mode
	ValidationPath   assertions.Path
	ValidationRules  []*assertions.Rule

	Tags             []string
	Preconditions    []*Precondition
	ExtractVariables map[string]string
	Timeout          time.Duration

	Index int
	Line  int

	// Err is set when the definition is malformed. Such a case is reported
	// with error status and never executed.
	Err error
}

// HasBodyChecks reports whether the case validates the response body.
func (tc *TestCase) HasBodyChecks() bool {
	return tc.ExpectedResponse != nil || tc.Schema != nil || len(tc.ValidationRules) > 0
}

type PreconditionKind string

const (
	PreconditionHTTP   PreconditionKind = "http"
	PreconditionScript PreconditionKind = "script"
	PreconditionSQL    PreconditionKind = "sql"
)

// Precondition is a setup step run before its test case. Its outputs are
// declared into the run's bindings.
type Precondition struct {
	Kind PreconditionKind

	// http
	Method           string
	URL              string
	Headers          map[string]string
	Params           map[string]any
	Data             any
	ExtractVariables map[string]string

	// script
	Script string
	Args   []string

	// sql
	Database string
	Query    string
	Extract  map[string]string

	Line int
}
