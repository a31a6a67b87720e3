// Package permission defines the fixed capability vocabulary and resolves
// manifests into enforceable capability grants.
package permission

import (
	"errors"
	"fmt"
)

// Capability is one atomic permission token from the fixed vocabulary.
type Capability string

const (
	// Tabs allows control of browser tabs.
	Tabs Capability = "tabs"
	// Bookmarks allows reading and writing bookmarks.
	Bookmarks Capability = "bookmarks"
	// History allows reading and writing browsing history.
	History Capability = "history"
	// Storage allows access to the extension's storage area.
	Storage Capability = "storage"
	// Cookies allows reading and writing cookies on permitted hosts.
	Cookies Capability = "cookies"
	// WebRequest allows intercepting requests to permitted hosts.
	WebRequest Capability = "webRequest"
	// Network allows issuing requests to permitted hosts.
	Network Capability = "network"
	// Scripting allows content injection into permitted hosts. It is
	// implied by any content-script entry point.
	Scripting Capability = "scripting"
)

// hostScoped marks capabilities whose checks must also match the target URL
// against the context's host scope. The rest are plain set-membership.
var vocabulary = map[Capability]struct{ hostScoped bool }{
	Tabs:       {hostScoped: false},
	Bookmarks:  {hostScoped: false},
	History:    {hostScoped: false},
	Storage:    {hostScoped: false},
	Cookies:    {hostScoped: true},
	WebRequest: {hostScoped: true},
	Network:    {hostScoped: true},
	Scripting:  {hostScoped: true},
}

// Known reports whether c is part of the fixed vocabulary.
func Known(c Capability) bool {
	_, ok := vocabulary[c]
	return ok
}

// HostScoped reports whether checks for c are bounded by host scope.
func (c Capability) HostScoped() bool {
	return vocabulary[c].hostScoped
}

// ErrUnknownPermission is returned when a manifest declares a token outside
// the fixed vocabulary.
var ErrUnknownPermission = errors.New("unknown permission")

// UnknownPermissionError reports the offending token.
type UnknownPermissionError struct {
	Token string
}

func (e *UnknownPermissionError) Error() string {
	return fmt.Sprintf("unknown permission: %q", e.Token)
}

// Is implements error matching for errors.Is() checks.
func (e *UnknownPermissionError) Is(target error) bool {
	return target == ErrUnknownPermission
}
