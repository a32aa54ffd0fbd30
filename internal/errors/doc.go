// Package errors provides coded, printable errors for the reactive tooling.
//
// Every error the CLI and the inspector surface to a user carries a code
// from a fixed registry, a short message and, where it helps, a detail
// paragraph, a hint and a location inside a configuration file.
//
// # Error Codes
//
// Codes are grouped by category:
//   - R0xx runtime: use after dispose, update loops, closure panics
//   - R1xx config: reading, parsing and validating reactive.json
//   - R2xx cli: bad arguments and flags
//   - R3xx inspect: the inspector HTTP server
//
// # Usage
//
//	err := errors.New("R102").
//	    WithLocation("reactive.json", 4, 17).
//	    WithSuggestion(`disposePolicy must be "log" or "error"`)
//
//	fmt.Println(err.Format())
//
// Errors returned by the reactive runtime are mapped onto the R0xx codes
// by FromRuntime.
package errors
