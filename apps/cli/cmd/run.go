package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abdul-hamid-achik/apicheck/packages/core/config"
	"github.com/abdul-hamid-achik/apicheck/packages/core/env"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory...]",
	Short: "Run API tests",
	Long: `Run the test cases of YAML or JSON test files.

With --app, the test files of a configured application are discovered under
its basePath and --env selects the base URL from its environments.

Examples:
  apicheck run tests/users.yaml
  apicheck run ./tests/ --tags smoke
  apicheck run --app users --env staging
  apicheck run --app users --name "*create*" --output junit --output-file report.xml`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	appFlag        string
	envFlag        string
	envFileFlag    string
	configFlag     string
	nameFlag       string
	tagsFlag       string
	cookieFlag     string
	proxyFlag      string
	insecureFlag   bool
	verboseFlag    int // 0=off, 1=-v, 2=-vv
	noColorFlag    bool
	timeoutFlag    string
	rateFlag       float64
	outputFlag     string
	outputFileFlag string
	watchFlag      bool
)

func init() {
	runCmd.Flags().StringVarP(&appFlag, "app", "a", getEnvString("APICHECK_APP", ""), "Application from the config file to run (env: APICHECK_APP)")
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("APICHECK_ENV", ""), "Environment of the application; defaults to the config's defaultEnvironment (env: APICHECK_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("APICHECK_ENV_FILE", ""), "Path to .env file for variable interpolation (env: APICHECK_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("APICHECK_CONFIG", ""), "Path to config file (env: APICHECK_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only tests matching name pattern (* wildcard at either end)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("APICHECK_TAGS", ""), "Run only tests with specified tags (comma-separated) (env: APICHECK_TAGS)")
	runCmd.Flags().StringVar(&cookieFlag, "cookie", getEnvString("APICHECK_COOKIE", ""), "Cookie header sent with every request (env: APICHECK_COOKIE)")
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("APICHECK_PROXY", ""), "Proxy URL for all requests (env: APICHECK_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("APICHECK_INSECURE", false), "Skip TLS certificate verification (env: APICHECK_INSECURE)")

	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for debug logs)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("APICHECK_NO_COLOR", false), "Disable colored output (env: APICHECK_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("APICHECK_OUTPUT", ""), "Output format: console, json, junit, html, tap (env: APICHECK_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("APICHECK_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: APICHECK_OUTPUT_FILE)")

	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("APICHECK_TIMEOUT", ""), "Request timeout, e.g. 30s or 1500ms (env: APICHECK_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("APICHECK_RATE", 0), "Maximum requests per second, 0 for no limit (env: APICHECK_RATE)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run tests")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// runOptions is the run command's input after flag parsing.
type runOptions struct {
	Paths      []string
	App        string
	Env        string
	EnvFile    string
	ConfigPath string
	Name       string
	Tags       []string
	Cookie     string
	Proxy      string
	Insecure   bool
	Verbosity  int
	NoColor    bool
	Timeout    string
	Rate       float64
	Output     string
	OutputFile string
}

// runPlan is everything a run needs, resolved from options and config.
type runPlan struct {
	// roots are the files and directories files was collected from.
	roots      []string
	files      []string
	format     string
	outputFile string
	verbose    bool
	noColor    bool
	config     *runner.Config
}

func runCommand(cmd *cobra.Command, args []string) error {
	opts := runOptions{
		Paths:      args,
		App:        appFlag,
		Env:        envFlag,
		EnvFile:    envFileFlag,
		ConfigPath: configFlag,
		Name:       nameFlag,
		Tags:       splitTags(tagsFlag),
		Cookie:     cookieFlag,
		Proxy:      proxyFlag,
		Insecure:   insecureFlag,
		Verbosity:  verboseFlag,
		NoColor:    noColorFlag,
		Timeout:    timeoutFlag,
		Rate:       rateFlag,
		Output:     outputFlag,
		OutputFile: outputFileFlag,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plan, err := planRun(opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.Verbosity)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	defer func() { _ = logger.Sync() }()
	plan.config.Logger = logger

	err = executeRun(ctx, plan, cmd.OutOrStdout())
	if !watchFlag {
		return err
	}
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}

	return watchAndRerun(ctx, cmd, plan)
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// planRun loads the config and the run-level variables and decides which
// files run against which base URL.
func planRun(opts runOptions) (*runPlan, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, withExitCode(ExitConfigError, fmt.Errorf("cannot load config: %w", err))
	}

	envName := opts.Env
	if envName == "" {
		envName = cfg.DefaultEnvironment
	}

	var (
		roots        []string
		files        []string
		baseURL      string
		testDataFile string
	)

	if opts.App != "" {
		app, err := cfg.Application(opts.App)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		baseURL, err = app.BaseURL(envName)
		if err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("application %q: %w", opts.App, err))
		}
		testDataFile = filepath.Join(app.BasePath, testDataDir, "test_data.json")

		roots = opts.Paths
		if len(roots) == 0 {
			roots = []string{app.BasePath}
		}
		files, err = collectFiles(roots)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
	} else {
		if len(opts.Paths) == 0 {
			return nil, withExitCode(ExitUsageError, errors.New("no test files given: pass files or directories, or --app"))
		}
		roots = opts.Paths
		files, err = collectFiles(roots)
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
	}

	if len(files) == 0 {
		return nil, withExitCode(ExitUsageError, errors.New("no .yaml, .yml or .json test files found"))
	}

	variables, err := env.Load(env.Sources{
		TestDataFile: testDataFile,
		Environment:  envName,
		DotEnvFile:   opts.EnvFile,
		SystemPrefix: env.SystemPrefix,
	})
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if opts.Timeout != "" {
		timeout, err = time.ParseDuration(opts.Timeout)
		if err != nil {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", opts.Timeout, err))
		}
	}

	rate := cfg.Rate
	if opts.Rate != 0 {
		rate = opts.Rate
	}
	if rate < 0 {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid rate %g", rate))
	}

	format := strings.ToLower(opts.Output)
	if format == "" && len(cfg.Reporters) > 0 {
		format = strings.ToLower(cfg.Reporters[0])
	}
	if _, err := output.New(format, io.Discard, output.Options{}); err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}

	proxy := cfg.Proxy
	if opts.Proxy != "" {
		proxy = opts.Proxy
	}

	outputFile := opts.OutputFile
	if outputFile == "" && cfg.OutputDir != "" && format != "" && format != "console" {
		outputFile = filepath.Join(cfg.OutputDir, "report."+reportExtension(format))
	}

	return &runPlan{
		roots:      roots,
		files:      files,
		format:     format,
		outputFile: outputFile,
		verbose:    opts.Verbosity > 0 || cfg.GetVerbose(),
		noColor:    opts.NoColor || cfg.GetNoColor(),
		config: &runner.Config{
			BaseURL:        baseURL,
			Variables:      variables,
			Timeout:        timeout,
			FollowRedirect: cfg.GetFollowRedirects(),
			MaxRedirects:   cfg.MaxRedirects,
			Insecure:       opts.Insecure || !cfg.GetValidateSSL(),
			Proxy:          proxy,
			Cookie:         opts.Cookie,
			Headers:        cfg.Headers,
			Rate:           rate,
			NameFilter:     opts.Name,
			TagsFilter:     opts.Tags,
			SchemaRoot:     cfg.SchemaRoot,
		},
	}, nil
}

// refresh collects the test files again so files created since the last run
// are picked up.
func (p *runPlan) refresh() error {
	files, err := collectFiles(p.roots)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no .yaml, .yml or .json test files found")
	}
	p.files = files
	return nil
}

func reportExtension(format string) string {
	switch format {
	case "junit":
		return "xml"
	default:
		return format
	}
}

// newLogger builds the diagnostic logger. Logs go to stderr so they never
// mix with a report written to stdout.
func newLogger(verbosity int) (*zap.Logger, error) {
	if verbosity <= 0 {
		return zap.NewNop(), nil
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbosity > 1 {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// executeRun runs every planned file with a fresh runner and reports the
// results. The returned error carries the exit code.
func executeRun(ctx context.Context, plan *runPlan, stdout io.Writer) error {
	w := stdout
	if plan.outputFile != "" {
		if dir := filepath.Dir(plan.outputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return withExitCode(ExitConfigError, fmt.Errorf("cannot create output directory: %w", err))
			}
		}
		f, err := os.Create(plan.outputFile)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		w = f
	}

	formatter, err := output.New(plan.format, w, output.Options{Verbose: plan.verbose, NoColor: plan.noColor})
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	r := runner.NewRunner(plan.config)

	var failed, errored, parseErrors int
	start := time.Now()
	for _, file := range plan.files {
		if ctx.Err() != nil {
			break
		}

		result, err := r.RunFile(ctx, file)
		if err != nil {
			formatter.FormatError(err)
			parseErrors++
			continue
		}

		formatter.FormatResult(result)
		failed += result.Failed
		errored += result.Errored
	}

	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(time.Since(start)); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	switch {
	case parseErrors > 0:
		return withExitCode(ExitParseError, fmt.Errorf("%d test files could not be loaded", parseErrors))
	case failed > 0 || errored > 0:
		return withExitCode(ExitTestFailure, fmt.Errorf("%d tests failed, %d errored", failed, errored))
	case ctx.Err() != nil:
		return withExitCode(ExitTestFailure, ctx.Err())
	}
	return nil
}

func watchAndRerun(ctx context.Context, cmd *cobra.Command, plan *runPlan) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	watch := func(dir string) {
		if watchedDirs[dir] {
			return
		}
		watchedDirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
		}
	}
	for _, file := range plan.files {
		watch(filepath.Dir(file))
	}
	for _, root := range plan.roots {
		info, err := os.Stat(root)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
				if err == nil && info.IsDir() {
					watch(path)
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watch(event.Name)
					continue
				}
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove)) || !isTestFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running tests...\n\n", name)
			if err := plan.refresh(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				continue
			}
			if err := executeRun(ctx, plan, cmd.OutOrStdout()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}
