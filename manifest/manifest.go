// Package manifest models extension manifests: the normalized,
// generation-independent in-memory form, the URL match-pattern grammar,
// and parsers for the two supported schema generations.
package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Generation tags which manifest schema generation a manifest was written in.
type Generation int

const (
	// Generation2 is the legacy schema (manifest_version 2).
	Generation2 Generation = 2
	// Generation3 is the current schema (manifest_version 3).
	Generation3 Generation = 3
)

func (g Generation) String() string {
	switch g {
	case Generation2:
		return "generation2"
	case Generation3:
		return "generation3"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

// EntryPointKind enumerates the closed set of entry-point variants.
// Generation-specific descriptors are translated into this set at parse
// time; nothing downstream sees generation-specific shapes.
type EntryPointKind int

const (
	// Background is a long-lived background execution context. Generation2
	// background scripts and Generation3 service-worker descriptors both
	// normalize to this variant.
	Background EntryPointKind = iota
	// ContentScript is injected into pages matching its URL patterns.
	ContentScript
	// BrowserAction is the toolbar action context. Generation3 "action"
	// normalizes to this variant.
	BrowserAction
	// PageAction is the per-page action context.
	PageAction
)

func (k EntryPointKind) String() string {
	switch k {
	case Background:
		return "background"
	case ContentScript:
		return "content_script"
	case BrowserAction:
		return "browser_action"
	case PageAction:
		return "page_action"
	default:
		return fmt.Sprintf("entry_point(%d)", int(k))
	}
}

// EntryPoint is one execution surface declared by a manifest.
// Patterns is populated only for ContentScript entries.
type EntryPoint struct {
	Kind     EntryPointKind
	Patterns []MatchPattern
}

// Manifest is the normalized, schema-version-tagged description of an
// extension. It is produced by a Parser and is read-only afterwards.
type Manifest struct {
	Name        string
	Version     *semver.Version
	Generation  Generation
	Description string
	Author      string

	EntryPoints []EntryPoint

	// Permissions are the declared permission tokens, deduplicated and
	// order-normalized. Tokens are validated against the fixed vocabulary
	// by the permission resolver, not here.
	Permissions []string

	// HostPatterns is the union of declared host patterns and every
	// content-script match pattern, deduplicated.
	HostPatterns []MatchPattern
}

// Validate checks the structural invariants that hold for every manifest
// regardless of generation.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return &MalformedSchemaError{Detail: "name is required"}
	}
	if m.Version == nil {
		return &MalformedSchemaError{Detail: "version is required"}
	}
	if len(m.EntryPoints) == 0 {
		return &MalformedSchemaError{Detail: "manifest declares no entry points"}
	}
	for _, ep := range m.EntryPoints {
		if ep.Kind == ContentScript && len(ep.Patterns) == 0 {
			return &MalformedSchemaError{Detail: "content script entry declares no host patterns"}
		}
	}
	return nil
}
