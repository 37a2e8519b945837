package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicheck/packages/core/config"
)

var (
	forceInit   bool
	initBaseURL string
)

var initCmd = &cobra.Command{
	Use:   "init [app-name]",
	Short: "Initialize a new apicheck project",
	Long: `Initialize an apicheck project in the current directory.

This creates:
  - apicheck.yaml                      config with one application
  - tests/<app>/example.yaml           example test file
  - tests/<app>/testdata/test_data.json shared test data

Examples:
  apicheck init
  apicheck init users --base-url http://localhost:8080
  apicheck init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "http://localhost:3000", "Base URL of the dev environment")
}

const exampleTests = `tags: [example]
test_cases:
  - name: Health check
    method: GET
    url: /health
    expected_status: 200
    tags: [smoke]

  - name: Create user
    method: POST
    url: /users
    data:
      name: ${userName}
      email: ${userEmail}
    expected_status: 201
    expected_response:
      id: pattern:integer
      name: ${userName}
      email: pattern:email
    extract_variables:
      user_id: id

  - name: Fetch created user
    method: GET
    url: /users/${user_id}
    expected_status: 200
    validation_mode: partial
    expected_response:
      id: ${user_id}
    validation_rules:
      - field: email
        comparison: exists
`

const exampleTestData = `{
  "testdata": {
    "userName": {"dev": "Dev User", "default": "Jane Smith"},
    "userEmail": "jane@example.com"
  }
}
`

func initCommand(cmd *cobra.Command, args []string) error {
	appName := "api"
	if len(args) == 1 {
		appName = args[0]
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return scaffold(cmd, cwd, appName, initBaseURL, forceInit)
}

func scaffold(cmd *cobra.Command, dir, appName, baseURL string, force bool) error {
	basePath := filepath.Join("tests", appName)
	configFile := filepath.Join(dir, "apicheck.yaml")
	exampleFile := filepath.Join(dir, basePath, "example.yaml")
	testDataFile := filepath.Join(dir, basePath, testDataDir, "test_data.json")

	if !force {
		for _, f := range []string{configFile, exampleFile, testDataFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "apicheck/" + version}
	cfg.Applications = map[string]*config.Application{
		appName: {
			Description: "Example application",
			BasePath:    basePath,
			Environments: map[string]string{
				"dev":     baseURL,
				"staging": "https://staging.api.example.com",
			},
		},
	}

	if err := os.MkdirAll(filepath.Dir(testDataFile), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", basePath, err)
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	files := []struct {
		path    string
		content string
	}{
		{exampleFile, exampleTests},
		{testDataFile, exampleTestData},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", f.path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", f.path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\napicheck project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'apicheck run --app %s' to execute the example tests.\n", appName)

	return nil
}
