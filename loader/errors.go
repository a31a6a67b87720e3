package loader

import (
	"errors"
	"fmt"

	"github.com/veilbrowser/extension-host/permission"
	"github.com/veilbrowser/extension-host/registry"
)

var (
	// ErrIntegrityRejected is returned when the external verifier rejects a
	// package. Treated like a validation error: fail closed, no partial
	// install.
	ErrIntegrityRejected = errors.New("package integrity rejected")

	// ErrPermissionEscalation is returned when an update requests
	// capabilities or host scope the user never approved. It is a
	// recoverable business outcome, not a fault: callers re-invoke Update
	// with an approval token.
	ErrPermissionEscalation = errors.New("permission escalation")

	// ErrApprovalMismatch is returned when an approval token does not match
	// the escalation currently pending for the extension.
	ErrApprovalMismatch = errors.New("approval token does not match pending escalation")
)

// IntegrityError wraps the verifier's rejection.
type IntegrityError struct {
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("package integrity rejected: %v", e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Is implements error matching for errors.Is() checks.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityRejected
}

// Escalation describes an update held in PendingApproval: the grant the
// user approved and the broader grant the new package requests.
type Escalation struct {
	InstallID   registry.InstallID
	Name        string
	Current     *permission.Grant
	Requested   *permission.Grant
	Fingerprint string
}

// Broad reports whether the requested scope reaches every host, which
// approval policies treat more strictly.
func (e *Escalation) Broad() bool {
	for _, pat := range e.Requested.HostScope() {
		if pat.Host() == "*" {
			return true
		}
	}
	return false
}

// EscalationError is returned by Update when the new grant is not
// subset-or-equal of the stored grant. The update is held until Update is
// re-invoked with a matching approval token.
type EscalationError struct {
	Escalation
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("permission escalation for %s (%s): update requests capabilities or host scope beyond the approved grant", e.Name, e.InstallID)
}

// Is implements error matching for errors.Is() checks.
func (e *EscalationError) Is(target error) bool {
	return target == ErrPermissionEscalation
}

// ApprovalToken authorizes exactly one escalated grant, identified by its
// fingerprint. Issued by an approval authority (see package approval) and
// consumed by re-invoking Update. Design-level discipline, not cryptographic.
type ApprovalToken struct {
	installID   registry.InstallID
	fingerprint string
}

// NewApprovalToken builds a token for the escalation with the given
// fingerprint.
func NewApprovalToken(id registry.InstallID, fingerprint string) ApprovalToken {
	return ApprovalToken{installID: id, fingerprint: fingerprint}
}

func (t ApprovalToken) matches(e *Escalation) bool {
	return t.installID == e.InstallID && t.fingerprint == e.Fingerprint
}
