package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an install id is absent from the catalog.
	ErrNotFound = errors.New("extension not found")

	// ErrDuplicate is returned on a raw insert for a (name, source) pair
	// that already has an install id; updates must go through the Loader.
	ErrDuplicate = errors.New("extension already installed")

	// ErrInconsistentState is returned when an operation meets an entry in a
	// state the state machine forbids. This is a programming-invariant
	// violation: the operation refuses to proceed rather than guess intent.
	ErrInconsistentState = errors.New("inconsistent registry state")

	// ErrInvalidToken is returned when a mutating call presents a write
	// token not issued by this registry.
	ErrInvalidToken = errors.New("invalid registry write token")
)

// NotFoundError reports the missing install id.
type NotFoundError struct {
	ID InstallID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("extension not found: %s", e.ID)
}

// Is implements error matching for errors.Is() checks.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateError reports the conflicting identity.
type DuplicateError struct {
	Name     string
	Source   Source
	Existing InstallID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("extension %q (%s) already installed as %s; updates go through the loader", e.Name, e.Source, e.Existing)
}

// Is implements error matching for errors.Is() checks.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// InconsistentStateError reports the entry and the transition that was
// refused.
type InconsistentStateError struct {
	ID   InstallID
	From State
	To   State
	Op   string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent state for %s during %s: %s -> %s is not a valid transition", e.ID, e.Op, e.From, e.To)
}

// Is implements error matching for errors.Is() checks.
func (e *InconsistentStateError) Is(target error) bool {
	return target == ErrInconsistentState
}
