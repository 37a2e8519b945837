package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/metrics"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string          `json:"runId"`
	Summary  JSONSummary     `json:"summary"`
	Latency  metrics.Summary `json:"latency"`
	Tests    []JSONTest      `json:"tests"`
	Duration float64         `json:"duration"`
	Time     string          `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	File        string                `json:"file"`
	Tags        []string              `json:"tags,omitempty"`
	Status      string                `json:"status"`
	State       string                `json:"state,omitempty"`
	SkipReason  string                `json:"skipReason,omitempty"`
	Duration    float64               `json:"duration"`
	Error       string                `json:"error,omitempty"`
	Request     *runner.RequestDetail `json:"request,omitempty"`
	Response    *JSONResponse         `json:"response,omitempty"`
	Mismatches  []assertions.Mismatch `json:"mismatches,omitempty"`
	Captured    map[string]any        `json:"captured,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	runID   string
	results []JSONTest
	tally   *tally
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		runID:   uuid.NewString(),
		results: make([]JSONTest, 0),
		tally:   newTally(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// JSONWithRunID fixes the run identifier instead of generating one.
func JSONWithRunID(id string) JSONOption {
	return func(f *JSONFormatter) {
		f.runID = id
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.tally.add(result)

	for _, r := range result.Results {
		test := JSONTest{
			Name:        r.Name,
			Description: r.Description,
			File:        result.File,
			Tags:        r.Tags,
			Status:      string(r.Status),
			SkipReason:  r.SkipReason,
			Duration:    float64(r.Duration.Milliseconds()),
			Error:       errorString(r.Error),
			Request:     r.Request,
			Mismatches:  r.Mismatches,
		}

		if r.Status == runner.StatusError {
			test.State = r.Reached.String()
		}

		if r.Response != nil {
			test.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Headers:    r.Response.Headers,
				Body:       r.Response.Body,
				Duration:   float64(r.Response.Duration.Milliseconds()),
			}
		}

		if len(r.Captured) > 0 {
			test.Captured = r.Captured
		}

		f.results = append(f.results, test)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	output := JSONOutput{
		RunID: f.runID,
		Summary: JSONSummary{
			Total:   f.tally.total,
			Passed:  f.tally.passed,
			Failed:  f.tally.failed,
			Errored: f.tally.errored,
			Skipped: f.tally.skipped,
		},
		Latency:  f.tally.latency.Summary(),
		Tests:    f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
