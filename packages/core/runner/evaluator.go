package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/capture"
	"github.com/abdul-hamid-achik/apicheck/packages/core/env"
	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/metrics"
)

// evaluator carries one test case through
// Loaded -> Resolved -> Requested -> Compared -> Done.
type evaluator struct {
	runner  *Runner
	tc      *parser.TestCase
	baseURL string
	baseDir string
	log     *zap.Logger
	latency *metrics.Latency

	result *CaseResult
	start  time.Time

	request  *http.Request
	response *http.Response
	body     any

	expected *assertions.Node
	rules    []*assertions.Rule
	schema   any
	status   Status
	// deferred is set when the expectations name a variable that only
	// extract_variables will bind.
	deferred bool
}

func (e *evaluator) run(ctx context.Context) *CaseResult {
	e.start = time.Now()
	e.result = &CaseResult{
		Name:        e.tc.Name,
		Description: e.tc.Description,
		Index:       e.tc.Index,
		State:       StateLoaded,
	}

	if e.tc.Err != nil {
		return e.finish(Classify(e.tc.Err), e.tc.Err)
	}

	steps := []struct {
		next State
		step func(context.Context) error
	}{
		{StateResolved, e.resolve},
		{StateRequested, e.send},
		{StateCompared, e.compare},
	}
	for _, s := range steps {
		if err := s.step(ctx); err != nil {
			return e.finish(Classify(err), err)
		}
		e.transition(s.next)
	}

	return e.finish(e.status, nil)
}

func (e *evaluator) transition(next State) {
	e.log.Debug("state", zap.Stringer("from", e.result.State), zap.Stringer("to", next))
	e.result.State = next
}

func (e *evaluator) finish(status Status, err error) *CaseResult {
	if err != nil {
		e.log.Debug("case errored", zap.Stringer("state", e.result.State), zap.Error(err))
	}
	e.result.Reached = e.result.State
	e.transition(StateDone)
	e.result.Status = status
	if err != nil {
		e.result.Error = err
	}
	e.result.Duration = time.Since(e.start)
	return e.result
}

// resolve runs preconditions, then expands templates in the request and in
// the expectations against the bindings they produced.
func (e *evaluator) resolve(ctx context.Context) error {
	for i, pre := range e.tc.Preconditions {
		if err := e.runner.runPrecondition(ctx, pre, e.baseURL, e.baseDir, e.log); err != nil {
			return fmt.Errorf("precondition %d (%s): %w", i+1, pre.Kind, err)
		}
	}

	req, err := e.runner.buildRequest(e.baseURL, e.tc.Method, e.tc.URL, e.tc.Headers, e.tc.Params, e.tc.Data)
	if err != nil {
		return err
	}
	req.SetTimeout(e.tc.Timeout)
	e.request = req
	e.result.Request = &RequestDetail{
		Method:  req.Method,
		URL:     req.BuildURL(),
		Headers: req.Headers,
		Params:  req.Params,
		Data:    req.Data,
	}

	if err := e.resolveExpectations(); err != nil {
		var unbound *env.UnboundVariableError
		if len(e.tc.ExtractVariables) == 0 || !errors.As(err, &unbound) {
			return err
		}
		e.deferred = true
		e.log.Debug("expectations wait for extracted variables", zap.String("variable", unbound.Name))
	}
	return nil
}

func (e *evaluator) resolveExpectations() error {
	resolver := e.runner.resolver

	if e.tc.ExpectedResponse != nil {
		expected, err := e.tc.ExpectedResponse.Resolve(resolver)
		if err != nil {
			return fmt.Errorf("expected_response: %w", err)
		}
		e.expected = expected
	}

	e.rules = e.rules[:0]
	for i, rule := range e.tc.ValidationRules {
		resolved, err := rule.Resolve(resolver)
		if err != nil {
			return fmt.Errorf("validation_rules[%d]: %w", i, err)
		}
		e.rules = append(e.rules, resolved)
	}

	e.schema = e.tc.Schema
	if ref, ok := e.tc.Schema.(string); ok {
		resolved, err := resolver.ResolveText(ref)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		e.schema = resolved
	}
	return nil
}

func (e *evaluator) send(ctx context.Context) error {
	resp, err := e.runner.client.Do(ctx, e.request)
	if err != nil {
		e.latency.RecordFailure()
		return err
	}
	e.latency.Record(resp.Duration)

	e.response = resp
	e.body = resp.Decode()
	if resp.URL != "" {
		e.result.Request.URL = resp.URL
	}
	if len(resp.SentHeaders) > 0 {
		e.result.Request.Headers = resp.SentHeaders
	}
	e.result.Response = &ResponseDetail{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       e.body,
		Duration:   resp.Duration,
	}

	if len(e.tc.ExtractVariables) > 0 {
		values := e.runner.extract(resp, e.tc.ExtractVariables, e.log)
		e.result.Captured = values
	}
	return nil
}

// compare checks the status code and every body expectation. All
// divergences are collected.
func (e *evaluator) compare(_ context.Context) error {
	if e.deferred {
		if err := e.resolveExpectations(); err != nil {
			return err
		}
	}

	var verdicts []*assertions.Verdict

	if e.tc.ExpectedStatus != 0 && e.tc.ExpectedStatus != e.response.StatusCode {
		verdicts = append(verdicts, &assertions.Verdict{
			Status: assertions.StatusFail,
			Mismatches: []assertions.Mismatch{{
				Path:     "status",
				Expected: e.tc.ExpectedStatus,
				Actual:   e.response.StatusCode,
				Reason:   "status code mismatch",
			}},
		})
	}

	cmp := e.runner.comparator
	if e.expected != nil {
		verdicts = append(verdicts, cmp.Compare(e.expected, e.body, e.tc.ValidationMode, e.tc.ValidationPath))
	}
	if e.schema != nil {
		root := e.runner.config.SchemaRoot
		verdicts = append(verdicts, assertions.NewSchemaValidator(e.baseDir, root).Validate(e.body, e.schema))
	}
	for _, rule := range e.rules {
		verdicts = append(verdicts, cmp.EvaluateRule(rule, e.body))
	}

	verdict := assertions.Combine(verdicts...)
	e.result.Mismatches = verdict.Mismatches
	e.result.Error = verdict.Err
	e.status = Status(verdict.Status)
	return nil
}

// buildRequest resolves the templated request fields against the run's
// bindings and joins the url onto base.
func (r *Runner) buildRequest(base, method, rawURL string, headers map[string]string, params map[string]any, data any) (*http.Request, error) {
	target, err := r.resolver.ResolveText(rawURL)
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	resolvedHeaders, err := r.resolver.ResolveStringMap(headers)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	resolvedParams, err := r.resolver.ResolveMap(params)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	resolvedData, err := r.resolver.ResolveValue(data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	req := http.NewRequest(method, http.JoinURL(base, target))
	for k, v := range resolvedHeaders {
		req.SetHeader(k, v)
	}
	for k, v := range resolvedParams {
		req.SetQueryParam(k, v)
	}
	req.SetData(resolvedData)
	return req, nil
}

// extract declares the values found at paths and warns about the rest.
func (r *Runner) extract(resp *http.Response, paths map[string]string, log *zap.Logger) map[string]any {
	values, missing := capture.ExtractAll(resp, paths)
	for name, value := range values {
		r.bindings.Declare(name, value)
		log.Debug("declared", zap.String("variable", name), zap.Any("value", value))
	}
	for _, name := range missing {
		log.Warn("could not extract variable", zap.String("variable", name), zap.String("path", paths[name]))
	}
	return values
}
