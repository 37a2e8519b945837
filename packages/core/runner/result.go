package runner

import (
	"errors"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
)

// Status is the outcome of one test case.
type Status string

const (
	StatusPass    Status = Status(assertions.StatusPass)
	StatusFail    Status = Status(assertions.StatusFail)
	StatusError   Status = Status(assertions.StatusError)
	StatusSkipped Status = "skipped"
)

// State is a step of case evaluation. A case moves forward through the
// states in order and stops at the one where it ended.
type State int

const (
	StateLoaded State = iota
	StateResolved
	StateRequested
	StateCompared
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateResolved:
		return "resolved"
	case StateRequested:
		return "requested"
	case StateCompared:
		return "compared"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// RequestDetail is the request as it was sent, after template resolution.
type RequestDetail struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Params  map[string]any    `json:"params,omitempty"`
	Data    any               `json:"data,omitempty"`
}

type ResponseDetail struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

type CaseResult struct {
	Name        string
	Description string
	Index       int
	Tags        []string

	Status Status
	State  State
	// Reached is the last state before Done, where an errored case stopped.
	Reached    State
	SkipReason string

	Request    *RequestDetail
	Response   *ResponseDetail
	Mismatches []assertions.Mismatch
	Error      error

	// Captured holds the values extract_variables declared.
	Captured map[string]any
	Duration time.Duration
}

// Classify maps an error to the case status it implies. Problems located in
// the response data are failures. Everything else, including unbound
// variables, malformed definitions and *http.TransportError, is an error.
func Classify(err error) Status {
	if err == nil {
		return StatusPass
	}

	var (
		pathErr   *assertions.PathNotFoundError
		schemaErr *assertions.SchemaError
		matchErr  *assertions.MatchError
	)
	if assertions.IsDefinitionError(err) {
		return StatusError
	}
	if errors.As(err, &pathErr) || errors.As(err, &schemaErr) || errors.As(err, &matchErr) {
		return StatusFail
	}

	return StatusError
}
