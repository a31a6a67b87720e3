package sandbox

import (
	"log/slog"
	"net/url"
	"sync"

	"github.com/veilbrowser/extension-host/manifest"
	"github.com/veilbrowser/extension-host/permission"
	"github.com/veilbrowser/extension-host/registry"
)

type tabKey struct {
	id  registry.InstallID
	tab int
}

// Manager creates and tears down sandbox contexts. Background activation is
// idempotent per extension; tab activation collapses concurrent calls for
// the same (extension, tab) pair to a single context, first writer wins.
type Manager struct {
	registry *registry.Registry
	rules    *SecurityPolicy
	logger   *slog.Logger

	mu         sync.RWMutex
	background map[registry.InstallID]*Context
	tabs       map[tabKey]*Context
	byID       map[ContextID]*Context
}

// Option configures a Manager.
type Option func(*Manager)

// WithSecurityPolicy sets the content rules applied to every context.
// Defaults to StrictPolicy.
func WithSecurityPolicy(p *SecurityPolicy) Option {
	return func(m *Manager) { m.rules = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager reading entries from the given registry.
func NewManager(reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry:   reg,
		rules:      StrictPolicy(),
		logger:     slog.Default(),
		background: make(map[registry.InstallID]*Context),
		tabs:       make(map[tabKey]*Context),
		byID:       make(map[ContextID]*Context),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate returns the background/action context for the extension,
// creating it on first call. Repeated activation without an intervening
// invalidation returns the same context.
func (m *Manager) Activate(id registry.InstallID) (*Context, error) {
	m.mu.RLock()
	if ctx, ok := m.background[id]; ok && !ctx.Invalidated() {
		m.mu.RUnlock()
		return ctx, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx, ok := m.background[id]; ok && !ctx.Invalidated() {
		return ctx, nil
	}

	view, err := m.enabledView(id)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		id:           newContextID(),
		installID:    id,
		capabilities: capabilitySet(view.Grant),
		hostScope:    view.Grant.HostScope(),
		rules:        m.rules,
	}
	m.background[id] = ctx
	m.byID[ctx.id] = ctx

	m.logger.Debug("context activated", "install_id", id, "context_id", ctx.id)
	return ctx, nil
}

// ActivateForTab returns the content-script context for the extension in
// the given tab, creating it if the URL matches the extension's host scope.
// The context's host scope is narrowed to the single pattern the injection
// matched; its capabilities never exceed the entry's grant.
func (m *Manager) ActivateForTab(id registry.InstallID, tab int, rawURL string) (*Context, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return nil, &HostNotPermittedError{InstallID: id, URL: rawURL, Reason: "target is not a valid absolute URL"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := tabKey{id: id, tab: tab}
	if ctx, ok := m.tabs[key]; ok && !ctx.Invalidated() {
		return ctx, nil
	}

	view, err := m.enabledView(id)
	if err != nil {
		return nil, err
	}

	matched, ok := bestMatch(view.Grant.HostScope(), u)
	if !ok {
		return nil, &HostNotPermittedError{InstallID: id, URL: rawURL, Reason: "url matches no pattern in host scope"}
	}

	ctx := &Context{
		id:           newContextID(),
		installID:    id,
		capabilities: capabilitySet(view.Grant),
		hostScope:    []manifest.MatchPattern{matched},
		rules:        m.rules,
		tabID:        tab,
		tabScoped:    true,
	}
	m.tabs[key] = ctx
	m.byID[ctx.id] = ctx

	m.logger.Debug("tab context activated",
		"install_id", id, "context_id", ctx.id, "tab", tab, "pattern", matched.String())
	return ctx, nil
}

// Invalidate tears down every live context of the extension. Safe to call
// on ids with no live contexts.
func (m *Manager) Invalidate(id registry.InstallID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx, ok := m.background[id]; ok {
		ctx.invalidate()
		delete(m.byID, ctx.id)
		delete(m.background, id)
	}
	for key, ctx := range m.tabs {
		if key.id != id {
			continue
		}
		ctx.invalidate()
		delete(m.byID, ctx.id)
		delete(m.tabs, key)
	}
}

// InvalidateContext tears down a single context. No-op for unknown or
// already-invalidated ids.
func (m *Manager) InvalidateContext(id ContextID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.byID[id]
	if !ok {
		return
	}
	ctx.invalidate()
	delete(m.byID, id)
	if tab, scoped := ctx.Tab(); scoped {
		delete(m.tabs, tabKey{id: ctx.installID, tab: tab})
	} else {
		delete(m.background, ctx.installID)
	}
}

// Lookup resolves a context id to its live context. Invalidated contexts
// are not returned; the policy engine denies on a failed lookup.
func (m *Manager) Lookup(id ContextID) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.byID[id]
	if !ok || ctx.Invalidated() {
		return nil, false
	}
	return ctx, true
}

// EntryDisabled implements registry.StateObserver: disabling an extension
// immediately invalidates all its live contexts.
func (m *Manager) EntryDisabled(id registry.InstallID) {
	m.Invalidate(id)
}

func (m *Manager) enabledView(id registry.InstallID) (registry.View, error) {
	view, err := m.registry.Get(id)
	if err != nil {
		return registry.View{}, err
	}
	if view.State != registry.StateEnabled {
		return registry.View{}, &NotEnabledError{InstallID: id, State: view.State}
	}
	return view, nil
}

func capabilitySet(grant *permission.Grant) map[permission.Capability]struct{} {
	caps := grant.Capabilities()
	out := make(map[permission.Capability]struct{}, len(caps))
	for _, c := range caps {
		out[c] = struct{}{}
	}
	return out
}

func bestMatch(scope []manifest.MatchPattern, u *url.URL) (manifest.MatchPattern, bool) {
	var best manifest.MatchPattern
	bestScore := -1
	for _, pat := range scope {
		if !pat.MatchesURL(u) {
			continue
		}
		if score := pat.Specificity(); score > bestScore {
			best, bestScore = pat, score
		}
	}
	return best, bestScore >= 0
}
