// Package http sends the requests apicheck test cases describe.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts and redirect handling
//   - Default headers and a run-wide cookie
//   - Optional request pacing
//   - Query and JSON body encoding from resolved test data
//   - Lenient response decoding for comparison
package http
