package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/metrics"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	case string:
		if len(val) > maxLen {
			return fmt.Sprintf("%q...", val[:maxLen])
		}
		return fmt.Sprintf("%q", val)
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+result.File))
	if result.BaseURL != "" {
		fmt.Fprintf(f.writer, "%s\n", cyan(result.BaseURL))
	}
	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		switch r.Status {
		case runner.StatusSkipped:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		case runner.StatusError:
			fmt.Fprintf(f.writer, "  %s %s %s\n", magenta("x"), r.Name, magenta(fmt.Sprintf("(%s)", r.Reached)))
			if r.Error != nil {
				fmt.Fprintf(f.writer, "    %s %v\n", magenta("→"), r.Error)
			}
		case runner.StatusFail:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		default:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		}

		if f.verbose && r.Description != "" {
			fmt.Fprintf(f.writer, "    %s\n", r.Description)
		}

		if (f.verbose || r.Status != runner.StatusPass) && r.Request != nil {
			fmt.Fprintf(f.writer, "    %s %s\n", r.Request.Method, r.Request.URL)
			if f.verbose {
				for _, name := range sortedKeys(r.Request.Headers) {
					fmt.Fprintf(f.writer, "      %s: %s\n", name, r.Request.Headers[name])
				}
				if r.Request.Data != nil {
					fmt.Fprintf(f.writer, "      Body: %s\n", formatValue(r.Request.Data, 100))
				}
			}
		}

		if f.verbose && r.Response != nil {
			fmt.Fprintf(f.writer, "    Status: %d\n", r.Response.StatusCode)
		}

		for _, m := range r.Mismatches {
			fmt.Fprintf(f.writer, "    %s %s: %s\n", red("→"), m.Path, m.Reason)
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(m.Expected, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(m.Actual, 100))
		}

		if r.Status == runner.StatusFail && r.Error != nil && len(r.Mismatches) == 0 {
			fmt.Fprintf(f.writer, "    %s %v\n", red("→"), r.Error)
		}

		if f.verbose && len(r.Captured) > 0 {
			fmt.Fprintf(f.writer, "    Captured:\n")
			for _, name := range sortedKeys(r.Captured) {
				fmt.Fprintf(f.writer, "      %s = %v\n", name, r.Captured[name])
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", magenta(fmt.Sprintf("%d errored", result.Errored)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Results))
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	if result.Latency.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: %s\n", formatLatency(result.Latency))
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("apicheck"), version)
}

func formatLatency(s metrics.Summary) string {
	parts := []string{
		fmt.Sprintf("p50 %dms", s.P50.Milliseconds()),
		fmt.Sprintf("p95 %dms", s.P95.Milliseconds()),
		fmt.Sprintf("p99 %dms", s.P99.Milliseconds()),
		fmt.Sprintf("max %dms", s.Max.Milliseconds()),
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
