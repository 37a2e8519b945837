// Package output renders run results.
//
// Supported formats:
//   - console: colored terminal output, one line per case with mismatches
//     listed under failing cases
//   - json: a single document with a run id, counts and latency percentiles
//   - junit: JUnit XML for CI; mismatches become failures, errors stay errors
//   - html: a self-contained report page
//   - tap: Test Anything Protocol
//
// Every formatter implements Formatter. The document formats also implement
// Flushable and write nothing until Flush.
package output
