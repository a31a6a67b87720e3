package manifest

import (
	"errors"
	"fmt"
)

// Sentinel errors for the validation taxonomy. Typed counterparts below
// carry detail; both errors.Is and errors.As work against them.
var (
	// ErrMalformedSchema is returned when required fields are missing or mistyped.
	ErrMalformedSchema = errors.New("malformed manifest schema")

	// ErrUnsupportedGeneration is returned when the manifest_version tag is
	// outside the supported generations.
	ErrUnsupportedGeneration = errors.New("unsupported manifest generation")

	// ErrInvalidHostPattern is returned when a host pattern fails the
	// match-pattern grammar.
	ErrInvalidHostPattern = errors.New("invalid host pattern")
)

// MalformedSchemaError reports a structural defect in a raw manifest.
type MalformedSchemaError struct {
	Detail string
}

func (e *MalformedSchemaError) Error() string {
	return fmt.Sprintf("malformed manifest schema: %s", e.Detail)
}

// Is implements error matching for errors.Is() checks.
func (e *MalformedSchemaError) Is(target error) bool {
	return target == ErrMalformedSchema
}

// UnsupportedGenerationError reports an out-of-range manifest_version.
type UnsupportedGenerationError struct {
	Version int
}

func (e *UnsupportedGenerationError) Error() string {
	return fmt.Sprintf("unsupported manifest generation: manifest_version %d", e.Version)
}

// Is implements error matching for errors.Is() checks.
func (e *UnsupportedGenerationError) Is(target error) bool {
	return target == ErrUnsupportedGeneration
}

// InvalidHostPatternError reports a host pattern outside the grammar.
type InvalidHostPatternError struct {
	Pattern string
	Reason  string
}

func (e *InvalidHostPatternError) Error() string {
	return fmt.Sprintf("invalid host pattern %q: %s", e.Pattern, e.Reason)
}

// Is implements error matching for errors.Is() checks.
func (e *InvalidHostPatternError) Is(target error) bool {
	return target == ErrInvalidHostPattern
}
