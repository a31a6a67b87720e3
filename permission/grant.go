package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/veilbrowser/extension-host/manifest"
)

// Grant is the resolved, enforceable form of a manifest: a capability set
// and a normalized host scope. A Grant is immutable once issued; any change
// requires re-resolution and an explicit upgrade transition through the
// Loader.
type Grant struct {
	capabilities map[Capability]struct{}
	implied      map[Capability]struct{}
	hostScope    []manifest.MatchPattern
	generation   manifest.Generation
}

func newGrant(
	caps map[Capability]struct{},
	implied map[Capability]struct{},
	scope []manifest.MatchPattern,
	gen manifest.Generation,
) *Grant {
	g := &Grant{
		capabilities: make(map[Capability]struct{}, len(caps)),
		implied:      make(map[Capability]struct{}, len(implied)),
		hostScope:    make([]manifest.MatchPattern, len(scope)),
		generation:   gen,
	}
	for c := range caps {
		g.capabilities[c] = struct{}{}
	}
	for c := range implied {
		g.implied[c] = struct{}{}
	}
	copy(g.hostScope, scope)
	return g
}

// Has reports whether the grant contains the capability.
func (g *Grant) Has(c Capability) bool {
	_, ok := g.capabilities[c]
	return ok
}

// Implied reports whether the capability entered the grant through an
// entry-point implication rather than an explicit declaration.
func (g *Grant) Implied(c Capability) bool {
	_, ok := g.implied[c]
	return ok
}

// Capabilities returns the capability set in deterministic order.
func (g *Grant) Capabilities() []Capability {
	out := make([]Capability, 0, len(g.capabilities))
	for c := range g.capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HostScope returns a copy of the normalized host patterns.
func (g *Grant) HostScope() []manifest.MatchPattern {
	out := make([]manifest.MatchPattern, len(g.hostScope))
	copy(out, g.hostScope)
	return out
}

// Generation returns the schema generation the grant was resolved from.
// It is diagnostic only: Equal, SubsetOf and Fingerprint ignore it so that
// generation never leaks into enforcement behavior.
func (g *Grant) Generation() manifest.Generation {
	return g.generation
}

// Equal reports generation-independent equality of capabilities and scope.
func (g *Grant) Equal(other *Grant) bool {
	if other == nil {
		return false
	}
	return g.SubsetOf(other) && other.SubsetOf(g)
}

// SubsetOf reports whether every capability and host pattern of g is
// already covered by other. This is the update-escalation comparison: an
// update whose new grant is not SubsetOf the old one escalates.
func (g *Grant) SubsetOf(other *Grant) bool {
	if other == nil {
		return len(g.capabilities) == 0 && len(g.hostScope) == 0
	}
	for c := range g.capabilities {
		if !other.Has(c) {
			return false
		}
	}
	for _, pat := range g.hostScope {
		covered := false
		for _, o := range other.hostScope {
			if o.Covers(pat) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// Fingerprint returns a stable content hash of the grant's capabilities and
// host scope. Identical manifests always fingerprint identically, which is
// what ties an approval token to the exact escalated grant it approves.
func (g *Grant) Fingerprint() string {
	caps := g.Capabilities()
	parts := make([]string, 0, len(caps)+len(g.hostScope)+1)
	for _, c := range caps {
		parts = append(parts, string(c))
	}
	parts = append(parts, "|")
	scope := make([]string, 0, len(g.hostScope))
	for _, pat := range g.hostScope {
		scope = append(scope, pat.String())
	}
	sort.Strings(scope)
	parts = append(parts, scope...)

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
