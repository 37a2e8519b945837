package parser

import (
	"fmt"
	"strconv"
)

// ParseError is a file-level failure: the file is not valid YAML or JSON, or
// its top-level shape is wrong. No case of the file runs.
type ParseError struct {
	File    string
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + e.Message
	case e.File != "":
		return e.File + ": " + e.Message
	default:
		return e.Message
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DefinitionError marks a single malformed test case. Other cases in the
// same file still run.
type DefinitionError struct {
	File string
	Case string
	Line int
	Err  error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s:%d: test case %q: %v", e.File, e.Line, e.Case, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}
