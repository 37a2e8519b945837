package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/parser"
)

// ScriptError reports a precondition script that exited non-zero or
// printed something other than a JSON object.
type ScriptError struct {
	Script string
	Stderr string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("script %s failed: %v: %s", e.Script, e.Err, e.Stderr)
	}
	return fmt.Sprintf("script %s failed: %v", e.Script, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// runScriptPrecondition runs a setup script and merges the JSON object it
// prints on stdout into the bindings. Python scripts run under python3,
// anything else through sh -c. API_BASE_URL carries the base url.
func (r *Runner) runScriptPrecondition(ctx context.Context, pre *parser.Precondition, baseURL, baseDir string, log *zap.Logger) error {
	script, err := r.resolver.ResolveText(pre.Script)
	if err != nil {
		return err
	}
	script = strings.TrimSpace(script)

	args := make([]string, 0, len(pre.Args))
	for _, a := range pre.Args {
		resolved, err := r.resolver.ResolveText(a)
		if err != nil {
			return err
		}
		args = append(args, resolved)
	}

	cmd := scriptCommand(ctx, locateScript(script, baseDir), args)
	cmd.Dir = baseDir
	cmd.Env = append(os.Environ(), "API_BASE_URL="+baseURL)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ScriptError{Script: script, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	vars, err := parseScriptOutput(stdout.Bytes())
	if err != nil {
		return &ScriptError{Script: script, Err: err}
	}

	r.bindings.DeclareAll(vars)
	log.Debug("script declared variables", zap.Int("count", len(vars)))
	return nil
}

func scriptCommand(ctx context.Context, script string, args []string) *exec.Cmd {
	if strings.EqualFold(filepath.Ext(script), ".py") {
		return exec.CommandContext(ctx, "python3", append([]string{script}, args...)...)
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, script)
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return exec.CommandContext(ctx, "sh", "-c", strings.Join(parts, " "))
}

// locateScript resolves a relative script path against the test file's
// directory when the file exists there.
func locateScript(script, baseDir string) string {
	if script == "" || filepath.IsAbs(script) || baseDir == "" {
		return script
	}
	fields := strings.Fields(script)
	candidate := filepath.Join(baseDir, fields[0])
	if _, err := os.Stat(candidate); err != nil {
		return script
	}
	fields[0] = candidate
	return strings.Join(fields, " ")
}

func parseScriptOutput(out []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var vars map[string]any
	if err := dec.Decode(&vars); err != nil {
		return nil, errors.New("stdout is not a JSON object")
	}
	return assertions.PlainNumbers(vars).(map[string]any), nil
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]{}~#!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
