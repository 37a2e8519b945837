package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
)

// runPrecondition executes one setup step and declares its outputs into the
// run's bindings.
func (r *Runner) runPrecondition(ctx context.Context, pre *parser.Precondition, baseURL, baseDir string, log *zap.Logger) error {
	log = log.With(zap.String("precondition", string(pre.Kind)))
	log.Debug("running precondition")

	switch pre.Kind {
	case parser.PreconditionHTTP:
		return r.runHTTPPrecondition(ctx, pre, baseURL, log)
	case parser.PreconditionScript:
		return r.runScriptPrecondition(ctx, pre, baseURL, baseDir, log)
	case parser.PreconditionSQL:
		return r.runSQLPrecondition(ctx, pre, baseDir, log)
	default:
		return fmt.Errorf("unknown precondition type %q", pre.Kind)
	}
}

// runHTTPPrecondition sends a setup request. Its status is not checked; a
// transport failure errors the owning case.
func (r *Runner) runHTTPPrecondition(ctx context.Context, pre *parser.Precondition, baseURL string, log *zap.Logger) error {
	req, err := r.buildRequest(baseURL, pre.Method, pre.URL, pre.Headers, pre.Params, pre.Data)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return err
	}
	log.Debug("precondition response", zap.Int("status", resp.StatusCode), zap.Duration("duration", resp.Duration))

	if len(pre.ExtractVariables) > 0 {
		r.extract(resp, pre.ExtractVariables, log)
	}
	return nil
}
