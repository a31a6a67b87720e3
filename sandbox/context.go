// Package sandbox creates and tears down isolated execution contexts: one
// background/action context per extension, plus one content-script context
// per (extension, tab) injection. It owns the content rules active for each
// context.
package sandbox

import (
	"net/url"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/veilbrowser/extension-host/manifest"
	"github.com/veilbrowser/extension-host/permission"
	"github.com/veilbrowser/extension-host/registry"
)

// ContextID identifies one live context.
type ContextID string

func newContextID() ContextID {
	return ContextID(uuid.NewString())
}

// Context is an ephemeral, per-activation authorization scope. Its
// capability set and host scope are fixed at creation; the only mutable bit
// is the one-way invalidation flag. Reading it is safe from any goroutine,
// which is what lets the policy engine check concurrently without locks.
type Context struct {
	id        ContextID
	installID registry.InstallID

	capabilities map[permission.Capability]struct{}
	hostScope    []manifest.MatchPattern
	rules        *SecurityPolicy

	tabID     int
	tabScoped bool

	invalidated atomic.Bool
}

// ID returns the context identifier.
func (c *Context) ID() ContextID { return c.id }

// InstallID returns the owning extension's install id. The context does not
// own the registry entry; it is invalidated when the entry is disabled,
// updated or removed.
func (c *Context) InstallID() registry.InstallID { return c.installID }

// Tab returns the tab scope, present only for content-script contexts.
func (c *Context) Tab() (int, bool) { return c.tabID, c.tabScoped }

// Invalidated reports whether the context has been torn down.
func (c *Context) Invalidated() bool { return c.invalidated.Load() }

func (c *Context) invalidate() { c.invalidated.Store(true) }

// Has reports whether the capability is active in this context.
func (c *Context) Has(cap permission.Capability) bool {
	_, ok := c.capabilities[cap]
	return ok
}

// Capabilities returns the active capability set in deterministic order.
// Always a non-strict subset of the owning entry's grant.
func (c *Context) Capabilities() []permission.Capability {
	out := make([]permission.Capability, 0, len(c.capabilities))
	for cap := range c.capabilities {
		out = append(out, cap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HostScope returns a copy of the context's host patterns. For tab-scoped
// contexts this is exactly the single pattern the injection matched.
func (c *Context) HostScope() []manifest.MatchPattern {
	out := make([]manifest.MatchPattern, len(c.hostScope))
	copy(out, c.hostScope)
	return out
}

// ContentRules returns the security policy active for this context.
func (c *Context) ContentRules() *SecurityPolicy { return c.rules }

// PermitsURL returns the most specific host pattern matching the URL,
// longest match wins: an exact host beats a wildcard subdomain beats a
// wildcard host.
func (c *Context) PermitsURL(u *url.URL) (manifest.MatchPattern, bool) {
	var best manifest.MatchPattern
	bestScore := -1
	for _, pat := range c.hostScope {
		if !pat.MatchesURL(u) {
			continue
		}
		if score := pat.Specificity(); score > bestScore {
			best, bestScore = pat, score
		}
	}
	return best, bestScore >= 0
}
