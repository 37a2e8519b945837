package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List all tests in test files",
	Long: `List all test cases defined in YAML or JSON test files.

Examples:
  apicheck list tests/users.yaml
  apicheck list ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml, .yml or .json test files found"))
	}

	parseErrors := 0
	for _, file := range files {
		f, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			parseErrors++
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		for _, tc := range f.TestCases {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s", tc.Name)
			if tc.Err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), " [%s %s]", tc.Method, tc.URL)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), " (invalid)")
			}
			fmt.Fprintln(cmd.OutOrStdout())

			tags := append(append([]string(nil), f.Tags...), tc.Tags...)
			if len(tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(tags, ", "))
			}
		}
	}

	if parseErrors > 0 {
		return withExitCode(ExitParseError, fmt.Errorf("%d files could not be parsed", parseErrors))
	}
	return nil
}
