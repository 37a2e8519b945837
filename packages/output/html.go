package output

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/metrics"
)

//go:embed report.html.tmpl
var htmlTemplate string

// HTMLOutput represents the complete HTML output structure
type HTMLOutput struct {
	Version        string
	Summary        HTMLSummary
	Latency        HTMLLatency
	Tests          []HTMLTest
	Duration       float64
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	ErroredPercent float64
	SkippedPercent float64
}

// HTMLSummary represents the test summary for HTML output
type HTMLSummary struct {
	Total   int
	Passed  int
	Failed  int
	Errored int
	Skipped int
}

// HTMLLatency holds response time percentiles in milliseconds.
type HTMLLatency struct {
	Count    int64
	Failures int64
	P50      int64
	P95      int64
	P99      int64
	Max      int64
}

// HTMLTest represents a single test result for HTML output
type HTMLTest struct {
	Name        string
	Description string
	File        string
	Status      string
	State       string
	SkipReason  string
	Duration    float64
	Error       string
	Request     *HTMLRequest
	Response    *HTMLResponse
	Mismatches  []HTMLMismatch
	Captured    map[string]any
}

// HTMLRequest represents request details for HTML output
type HTMLRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// HTMLResponse represents response details for HTML output
type HTMLResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	Duration   float64
}

type HTMLMismatch struct {
	Path     string
	Reason   string
	Expected string
	Actual   string
}

// HTMLFormatter formats test results as HTML
type HTMLFormatter struct {
	writer  io.Writer
	results []HTMLTest
	version string
	tally   *tally
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer:  os.Stdout,
		results: make([]HTMLTest, 0),
		tally:   newTally(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

// FormatResult accumulates a test result
func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	f.tally.add(result)

	for _, r := range result.Results {
		test := HTMLTest{
			Name:        r.Name,
			Description: r.Description,
			File:        result.File,
			Status:      string(r.Status),
			SkipReason:  r.SkipReason,
			Duration:    float64(r.Duration.Milliseconds()),
			Error:       errorString(r.Error),
			Captured:    r.Captured,
		}

		if r.Status == runner.StatusError {
			test.State = r.Reached.String()
		}

		if r.Request != nil {
			test.Request = &HTMLRequest{
				Method:  r.Request.Method,
				URL:     r.Request.URL,
				Headers: r.Request.Headers,
			}
			if r.Request.Data != nil {
				test.Request.Body = prettyJSON(r.Request.Data)
			}
		}

		if r.Response != nil {
			test.Response = &HTMLResponse{
				StatusCode: r.Response.StatusCode,
				Headers:    r.Response.Headers,
				Body:       prettyJSON(r.Response.Body),
				Duration:   float64(r.Response.Duration.Milliseconds()),
			}
		}

		for _, m := range r.Mismatches {
			test.Mismatches = append(test.Mismatches, HTMLMismatch{
				Path:     m.Path,
				Reason:   m.Reason,
				Expected: formatValue(m.Expected, 200),
				Actual:   formatValue(m.Actual, 200),
			})
		}

		f.results = append(f.results, test)
	}
}

// FormatError handles errors (no-op for HTML, errors are in test results)
func (f *HTMLFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated HTML output
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	t := f.tally
	pct := func(n int) float64 {
		if t.total == 0 {
			return 0
		}
		return float64(n) / float64(t.total) * 100
	}

	output := HTMLOutput{
		Version: f.version,
		Summary: HTMLSummary{
			Total:   t.total,
			Passed:  t.passed,
			Failed:  t.failed,
			Errored: t.errored,
			Skipped: t.skipped,
		},
		Latency:        htmlLatency(t.latency.Summary()),
		Tests:          f.results,
		Duration:       float64(totalDuration.Milliseconds()),
		Time:           time.Now().Format("2006-01-02 15:04:05"),
		PassedPercent:  pct(t.passed),
		FailedPercent:  pct(t.failed),
		ErroredPercent: pct(t.errored),
		SkippedPercent: pct(t.skipped),
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return tmpl.Execute(f.writer, output)
}

func htmlLatency(s metrics.Summary) HTMLLatency {
	return HTMLLatency{
		Count:    s.Count,
		Failures: s.Failures,
		P50:      s.P50.Milliseconds(),
		P95:      s.P95.Milliseconds(),
		P99:      s.P99.Milliseconds(),
		Max:      s.Max.Milliseconds(),
	}
}

func prettyJSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
