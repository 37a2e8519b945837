// Package cmd implements the apicheck CLI commands using Cobra.
//
// Available commands:
//   - run: execute test files, or every test of a configured application
//   - validate: load test files and report malformed cases without running them
//   - list: print the cases defined in test files
//   - init: scaffold a config file and an example application
//   - version: print version information
package cmd
