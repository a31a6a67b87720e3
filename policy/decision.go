// Package policy is the runtime mediation gate: every privileged operation
// an extension context attempts is routed through Engine.Check, which
// decides allow/deny against the context's active capabilities and host
// scope and emits exactly one audit record per decision.
package policy

// Outcome is the allow/deny result of a check.
type Outcome string

const (
	// Allow permits the capability invocation.
	Allow Outcome = "allow"
	// Deny blocks it. Deny is the fail-safe default for any ambiguous or
	// erroring check.
	Deny Outcome = "deny"
)

// Reason explains a decision.
type Reason string

const (
	// ReasonGranted marks an allowed invocation.
	ReasonGranted Reason = "granted"
	// ReasonContextInvalidated marks a check against an unknown or
	// torn-down context.
	ReasonContextInvalidated Reason = "context_invalidated"
	// ReasonUnknownCapability marks a capability outside the vocabulary.
	ReasonUnknownCapability Reason = "unknown_capability"
	// ReasonCapabilityNotGranted marks a capability absent from the
	// context's active set.
	ReasonCapabilityNotGranted Reason = "capability_not_granted"
	// ReasonMalformedTarget marks a host-scoped check whose target is not
	// a parseable absolute URL.
	ReasonMalformedTarget Reason = "malformed_target"
	// ReasonBlockedByContentRules marks a target rejected by the context's
	// security policy before host matching.
	ReasonBlockedByContentRules Reason = "blocked_by_content_rules"
	// ReasonHostNotInScope marks a target URL outside the context's host
	// scope.
	ReasonHostNotInScope Reason = "host_not_in_scope"
)

// Decision is the result of one policy check.
type Decision struct {
	Outcome Outcome
	Reason  Reason
	// Pattern is the canonical host pattern that won the longest-match for
	// allowed host-scoped checks; empty otherwise.
	Pattern string
}

// Allowed reports whether the decision permits the invocation.
func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

func allow(pattern string) Decision {
	return Decision{Outcome: Allow, Reason: ReasonGranted, Pattern: pattern}
}

func deny(reason Reason) Decision {
	return Decision{Outcome: Deny, Reason: reason}
}
