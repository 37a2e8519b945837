// Package capture extracts values from HTTP responses into run bindings.
//
// Paths address the JSON body (a.b.0.c) or, with a header: prefix, a
// response header. Extracted values are declared under the names given in a
// test case's or precondition's extract_variables.
package capture
