// Package config loads apicheck.yaml, apicheck.yml or .apicheck.json.
//
// A config names applications, each with a directory of test files and a
// base URL per environment, plus run defaults such as timeout, headers and
// reporters. Command-line flags override the file; the file overrides
// DefaultConfig.
package config
