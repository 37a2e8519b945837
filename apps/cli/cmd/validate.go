package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicheck/packages/core/env"
	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate test files without executing them",
	Long: `Load test files and report file-level errors and malformed test cases
(unknown methods, validation modes, comparisons or missing fields) without
sending any request.

Warnings are printed for cases that check nothing and for variables that
are neither declared in the file nor extracted by an earlier case; those
must come from test data, a .env file or APICHECK_ variables at run time.

Examples:
  apicheck validate tests/users.yaml
  apicheck validate ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml, .yml or .json test files found"))
	}

	invalid := 0
	for _, file := range files {
		f, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			invalid++
			continue
		}

		bad := 0
		for _, tc := range f.TestCases {
			if tc.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error in %v\n", tc.Err)
				bad++
			}
		}
		if bad > 0 {
			invalid++
			continue
		}
		for _, w := range lintFile(f) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning in %s: %s\n", file, w)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", file, len(f.TestCases))
	}

	if invalid > 0 {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed: %d of %d files invalid", invalid, len(files)))
	}

	return nil
}

// lintFile reports cases without any check and placeholders the file itself
// never binds. Script and SQL preconditions declare names that are only known
// once they run, so unbound checks stop at the first one.
func lintFile(f *parser.File) []string {
	bindings := env.NewBindings()
	for name, value := range f.Variables {
		bindings.Bind(name, value)
	}
	resolver := env.NewResolver(bindings)

	var warnings []string
	dynamic := false
	for _, tc := range f.TestCases {
		if tc.ExpectedStatus == 0 && !tc.HasBodyChecks() {
			warnings = append(warnings, fmt.Sprintf("case %d (%s) checks neither status nor body", tc.Index+1, tc.Name))
		}

		for _, pre := range tc.Preconditions {
			if pre.Kind != parser.PreconditionHTTP {
				dynamic = true
				continue
			}
			if !dynamic {
				warnings = append(warnings, unboundWarnings(resolver, tc, pre.URL, pre.Headers)...)
			}
			for name := range pre.ExtractVariables {
				bindings.Bind(name, "")
			}
		}
		if !dynamic {
			warnings = append(warnings, unboundWarnings(resolver, tc, tc.URL, tc.Headers)...)
		}

		for name := range tc.ExtractVariables {
			bindings.Bind(name, "")
		}
	}
	return warnings
}

func unboundWarnings(resolver *env.Resolver, tc *parser.TestCase, url string, headers map[string]string) []string {
	texts := []string{url}
	for _, v := range headers {
		texts = append(texts, v)
	}

	seen := make(map[string]bool)
	var names []string
	for _, text := range texts {
		for _, name := range resolver.GetUnresolvedVariables(text) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	warnings := make([]string, 0, len(names))
	for _, name := range names {
		warnings = append(warnings, fmt.Sprintf("case %d (%s) uses unbound variable %q", tc.Index+1, tc.Name, name))
	}
	return warnings
}
