package sandbox

import (
	"errors"
	"fmt"

	"github.com/veilbrowser/extension-host/registry"
)

var (
	// ErrHostNotPermitted is returned when a content-script activation URL
	// matches none of the extension's host scope.
	ErrHostNotPermitted = errors.New("host not permitted")

	// ErrNotEnabled is returned when activating an extension that is not in
	// the Enabled state. A context never outlives, nor predates, its
	// entry's enabled state.
	ErrNotEnabled = errors.New("extension not enabled")
)

// HostNotPermittedError reports the rejected activation target.
type HostNotPermittedError struct {
	InstallID registry.InstallID
	URL       string
	Reason    string
}

func (e *HostNotPermittedError) Error() string {
	return fmt.Sprintf("host not permitted for %s: %q (%s)", e.InstallID, e.URL, e.Reason)
}

// Is implements error matching for errors.Is() checks.
func (e *HostNotPermittedError) Is(target error) bool {
	return target == ErrHostNotPermitted
}

// NotEnabledError reports the entry's actual state.
type NotEnabledError struct {
	InstallID registry.InstallID
	State     registry.State
}

func (e *NotEnabledError) Error() string {
	return fmt.Sprintf("extension %s is %s, not enabled", e.InstallID, e.State)
}

// Is implements error matching for errors.Is() checks.
func (e *NotEnabledError) Is(target error) bool {
	return target == ErrNotEnabled
}
