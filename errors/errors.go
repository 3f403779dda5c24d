// Package errors defines all exported error sentinels for the fieldmask library.
//
// This is the single source of truth for error values. The top-level
// fieldmask package and the CLI both import from here, ensuring errors.Is
// checks work across package boundaries.
package errors

import "errors"

// Startup errors
var (
	ErrRulesNotFound    = errors.New("fieldmask: rules file not found")
	ErrInvalidRules     = errors.New("fieldmask: rules document is malformed")
	ErrInputNotFound    = errors.New("fieldmask: input file not found")
	ErrInvalidConfig    = errors.New("fieldmask: invalid configuration")
	ErrMissingOutput    = errors.New("fieldmask: output path is required unless dry-run is set")
	ErrUnknownAlgorithm = errors.New("fieldmask: unknown hash algorithm")
	ErrUnknownFilter    = errors.New("fieldmask: unknown filter kind")
	ErrUnknownEncoding  = errors.New("fieldmask: unknown text encoding")
	ErrUnknownMode      = errors.New("fieldmask: unknown input mode")
)

// Per-line errors
var (
	ErrFieldOutOfRange = errors.New("fieldmask: field range exceeds line length")
	ErrMalformedRecord = errors.New("fieldmask: delimited record could not be parsed")
)

// Output errors
var (
	ErrUnencodable = errors.New("fieldmask: line cannot be represented in output encoding")
)
