// Package runner executes apicheck test files.
//
// Cases run sequentially in declaration order. Each case moves through
// Loaded, Resolved, Requested and Compared before it is Done with status
// pass, fail or error. Transport failures and broken definitions end a case
// with error and the run continues with the next case.
//
// All files run by one Runner share a single set of bindings. Preconditions
// and extract_variables declare into it, so later cases can use values
// produced by earlier ones.
package runner
