package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/metrics"
)

// Formatter renders run results as they arrive.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that write a single document after
// every file has run.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Names lists the reporters New accepts.
var Names = []string{"console", "json", "junit", "html", "tap"}

type Options struct {
	Verbose bool
	NoColor bool
}

// New returns the reporter registered under name, writing to w.
func New(name string, w io.Writer, opts Options) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(opts.Verbose), WithNoColor(opts.NoColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "html":
		return NewHTMLFormatter(HTMLWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected one of %v)", name, Names)
	}
}

// tally accumulates counts and response times across files for the
// formatters that report once at the end.
type tally struct {
	total   int
	passed  int
	failed  int
	errored int
	skipped int
	latency *metrics.Latency
}

func newTally() *tally {
	return &tally{latency: metrics.NewLatency()}
}

func (t *tally) add(result *runner.RunResult) {
	for _, r := range result.Results {
		t.total++
		switch r.Status {
		case runner.StatusPass:
			t.passed++
		case runner.StatusFail:
			t.failed++
		case runner.StatusError:
			t.errored++
		case runner.StatusSkipped:
			t.skipped++
		}

		// A case that errored once resolved but has no response lost its
		// request in transport. Earlier errors never sent anything.
		switch {
		case r.Response != nil:
			t.latency.Record(r.Response.Duration)
		case r.Status == runner.StatusError && r.Reached >= runner.StateResolved:
			t.latency.RecordFailure()
		}
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
