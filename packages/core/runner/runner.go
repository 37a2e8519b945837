package runner

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/env"
	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/metrics"
)

// Doer sends one resolved request. *http.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Runner struct {
	client     Doer
	bindings   *env.Bindings
	resolver   *env.Resolver
	comparator *assertions.Comparator
	latency    *metrics.Latency
	logger     *zap.Logger
	config     *Config
}

type Config struct {
	Logger *zap.Logger

	// BaseURL overrides the base_url of every file when set, typically from
	// an application environment.
	BaseURL string
	// Variables seed the run's bindings before any file is loaded.
	Variables map[string]any

	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	// Insecure skips TLS certificate verification.
	Insecure bool
	Proxy    string
	Cookie   string
	Headers  map[string]string
	// Rate caps requests per second; zero disables pacing.
	Rate float64

	NameFilter string
	TagsFilter []string

	// SchemaRoot bounds where schema files may be read from. Empty means
	// the directory of the test file.
	SchemaRoot string

	// Client replaces the HTTP client built from the fields above.
	Client Doer
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := cfg.Client
	if client == nil {
		client = http.NewClient(
			http.WithTimeout(cfg.Timeout),
			http.WithFollowRedirects(cfg.FollowRedirect),
			http.WithMaxRedirects(cfg.MaxRedirects),
			http.WithValidateSSL(!cfg.Insecure),
			http.WithProxy(cfg.Proxy),
			http.WithDefaultHeaders(cfg.Headers),
			http.WithCookie(cfg.Cookie),
			http.WithRateLimit(cfg.Rate),
		)
	}

	bindings := env.NewBindings()
	for name, value := range cfg.Variables {
		bindings.Bind(name, value)
	}

	resolver := env.NewResolver(bindings)
	sugar := logger.Sugar()
	resolver.SetWarnFunc(sugar.Warnf)

	return &Runner{
		client:     client,
		bindings:   bindings,
		resolver:   resolver,
		comparator: assertions.NewComparator(),
		latency:    metrics.NewLatency(),
		logger:     logger,
		config:     cfg,
	}
}

// Bindings returns the variables shared by every file this runner executes.
func (r *Runner) Bindings() *env.Bindings {
	return r.bindings
}

// Latency returns response times recorded across every file run so far.
func (r *Runner) Latency() *metrics.Latency {
	return r.latency
}

type RunResult struct {
	File     string
	BaseURL  string
	Results  []*CaseResult
	Duration time.Duration
	Passed   int
	Failed   int
	Errored  int
	Skipped  int
	Latency  metrics.Summary
}

// OK reports whether no case failed or errored.
func (r *RunResult) OK() bool {
	return r.Failed == 0 && r.Errored == 0
}

// RunFile loads and runs one test file. Only a file-level *parser.ParseError
// is returned; problems with single cases are reported on their results.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, file), nil
}

// Run executes the cases of an already loaded file in declaration order.
func (r *Runner) Run(ctx context.Context, file *parser.File) *RunResult {
	start := time.Now()
	result := &RunResult{File: file.Path}
	fileLatency := metrics.NewLatency()

	r.bindings.DeclareAll(file.Variables)
	result.BaseURL = r.baseURL(file)

	baseDir := filepath.Dir(file.Path)
	log := r.logger.With(zap.String("file", file.Path))
	log.Debug("running file", zap.Int("cases", len(file.TestCases)), zap.String("base_url", result.BaseURL))

	for _, tc := range file.TestCases {
		tags := append(append([]string(nil), file.Tags...), tc.Tags...)

		if reason := r.skipReason(tc, tags); reason != "" {
			result.Results = append(result.Results, &CaseResult{
				Name:        tc.Name,
				Description: tc.Description,
				Index:       tc.Index,
				Tags:        tags,
				Status:      StatusSkipped,
				State:       StateLoaded,
				SkipReason:  reason,
			})
			result.Skipped++
			continue
		}

		ev := &evaluator{
			runner:  r,
			tc:      tc,
			baseURL: result.BaseURL,
			baseDir: baseDir,
			log:     log.With(zap.String("case", tc.Name)),
			latency: fileLatency,
		}
		cr := ev.run(ctx)
		cr.Tags = tags
		result.Results = append(result.Results, cr)

		switch cr.Status {
		case StatusPass:
			result.Passed++
		case StatusFail:
			result.Failed++
		default:
			result.Errored++
		}
	}

	r.latency.Merge(fileLatency)
	result.Latency = fileLatency.Summary()
	result.Duration = time.Since(start)
	log.Debug("file done",
		zap.Int("passed", result.Passed),
		zap.Int("failed", result.Failed),
		zap.Int("errored", result.Errored),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (r *Runner) baseURL(file *parser.File) string {
	base := r.config.BaseURL
	if base == "" {
		base = file.BaseURL
	}
	resolved, err := r.resolver.ResolveText(base)
	if err != nil {
		r.logger.Warn("base url left unresolved", zap.String("base_url", base), zap.Error(err))
		return base
	}
	return resolved
}

func (r *Runner) skipReason(tc *parser.TestCase, tags []string) string {
	if r.config.NameFilter != "" && !matchesPattern(tc.Name, r.config.NameFilter) {
		return "name filter"
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(tags, r.config.TagsFilter) {
		return "tag filter"
	}
	return ""
}

// matchesPattern supports a leading and/or trailing * wildcard.
func matchesPattern(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case prefix:
		return strings.HasSuffix(name, core)
	case suffix:
		return strings.HasPrefix(name, core)
	default:
		return name == pattern
	}
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
