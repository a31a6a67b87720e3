package permission

import (
	"sort"

	"github.com/veilbrowser/extension-host/manifest"
)

// Resolve expands a manifest's declared permissions and host patterns into a
// canonical Grant. Resolution is deterministic: the same manifest always
// yields a bit-for-bit identical Grant, which the Loader relies on when
// diffing an update against the previously approved grant.
func Resolve(m *manifest.Manifest) (*Grant, error) {
	caps := make(map[Capability]struct{}, len(m.Permissions))
	implied := make(map[Capability]struct{})

	for _, tok := range m.Permissions {
		c := Capability(tok)
		if !Known(c) {
			return nil, &UnknownPermissionError{Token: tok}
		}
		caps[c] = struct{}{}
	}

	// A content-script entry implies the minimal content-injection
	// capability for its own patterns even when not declared separately.
	for _, ep := range m.EntryPoints {
		if ep.Kind != manifest.ContentScript {
			continue
		}
		if _, declared := caps[Scripting]; !declared {
			implied[Scripting] = struct{}{}
		}
		caps[Scripting] = struct{}{}
	}

	scope := normalizeScope(m.HostPatterns)
	return newGrant(caps, implied, scope, m.Generation), nil
}

// normalizeScope deduplicates patterns and collapses any pattern that is a
// strict subset of another into its covering superset: the broader grant
// already covers the narrower one. The result is sorted canonically.
func normalizeScope(patterns []manifest.MatchPattern) []manifest.MatchPattern {
	unique := make(map[string]manifest.MatchPattern, len(patterns))
	for _, p := range patterns {
		unique[p.String()] = p
	}

	kept := make([]manifest.MatchPattern, 0, len(unique))
	for key, p := range unique {
		covered := false
		for otherKey, other := range unique {
			if otherKey == key {
				continue
			}
			if other.Covers(p) && !p.Covers(other) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, p)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].String() < kept[j].String() })
	return kept
}
