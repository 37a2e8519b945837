// Package env handles variable bindings and template resolution for apicheck.
//
// It provides functionality for:
//   - Bindings: the run-wide variable context shared by every test case
//   - Template resolution using ${name}, ${name.field}, ${$ENV_VAR} and
//     ${function(args)} placeholders
//   - Common test data files with per-environment layering
//   - .env files and APICHECK_VAR_ prefixed process variables
package env
