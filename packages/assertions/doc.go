// Package assertions implements response validation for apicheck.
//
// It provides:
//   - Expected trees (Node) compiled from test definitions, where string leaves
//     of the form "pattern:<name>" or "regex:<expr>" become match tokens
//   - A pattern Registry with the built-in named predicates (integer, email,
//     phone_us, date_mm_dd_yy, ...)
//   - A Comparator that walks expected and actual trees in full, partial or
//     specific validation mode and collects every mismatch with its path
//   - Field rules (validation_rules) evaluated as single-path checks
//   - JSON Schema validation of response bodies
//
// Every check produces a Verdict whose status is pass, fail or error.
package assertions
