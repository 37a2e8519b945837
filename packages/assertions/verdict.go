package assertions

import (
	"errors"
	"fmt"
)

// Status is the outcome of a check or of a whole test case.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusError:
		return 2
	case StatusFail:
		return 1
	default:
		return 0
	}
}

// Mismatch is a single divergence between expected and actual data.
type Mismatch struct {
	Path     string `json:"path"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Reason   string `json:"reason"`
	Cause    error  `json:"-"`
}

func (m Mismatch) String() string {
	if m.Expected == nil && m.Actual == nil {
		return fmt.Sprintf("%s: %s", m.Path, m.Reason)
	}
	return fmt.Sprintf("%s: %s (expected %v, got %v)", m.Path, m.Reason, m.Expected, m.Actual)
}

// Verdict collects the mismatches of one check. Err is set when the check
// could not be carried out, which makes the status error.
type Verdict struct {
	Status     Status     `json:"status"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
	Err        error      `json:"-"`
}

// Pass returns an empty passing verdict.
func Pass() *Verdict {
	return &Verdict{Status: StatusPass}
}

// Errored returns a verdict with error status.
func Errored(err error) *Verdict {
	return &Verdict{Status: StatusError, Err: err}
}

func (v *Verdict) Passed() bool {
	return v == nil || v.Status == StatusPass
}

func (v *Verdict) addMismatch(m Mismatch) {
	v.Mismatches = append(v.Mismatches, m)
	if v.Status == StatusPass || v.Status == "" {
		v.Status = StatusFail
	}
}

func (v *Verdict) setError(err error) {
	if v.Err == nil {
		v.Err = err
	} else {
		v.Err = errors.Join(v.Err, err)
	}
	v.Status = StatusError
}

// Combine merges verdicts. Error outranks fail, fail outranks pass, and all
// mismatches are kept in order.
func Combine(verdicts ...*Verdict) *Verdict {
	out := Pass()
	for _, v := range verdicts {
		if v == nil {
			continue
		}
		out.Mismatches = append(out.Mismatches, v.Mismatches...)
		if v.Status.rank() > out.Status.rank() {
			out.Status = v.Status
		}
		if v.Err != nil {
			if out.Err == nil {
				out.Err = v.Err
			} else {
				out.Err = errors.Join(out.Err, v.Err)
			}
		}
	}
	return out
}
