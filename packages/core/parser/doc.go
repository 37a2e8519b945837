// Package parser loads apicheck test definition files.
//
// Files are YAML or JSON in one of two shapes:
//   - a mapping with optional base_url, tags, variables and testData, and a
//     required test_cases list
//   - a bare list of cases using endpoint, body and validation_rules
//
// Both shapes normalize into TestCase. Expected responses are compiled into
// assertion trees at load time, and YAML anchors, aliases and merge keys are
// expanded before any case is built.
package parser
