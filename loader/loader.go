// Package loader orchestrates extension install, update and uninstall:
// integrity check, parse, permission resolution, escalation diffing, and
// registry transitions. It is the only holder of the registry write token.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veilbrowser/extension-host/manifest"
	"github.com/veilbrowser/extension-host/permission"
	"github.com/veilbrowser/extension-host/registry"
)

// Loader drives the extension lifecycle. All registry mutations route
// through it.
type Loader struct {
	registry    *registry.Registry
	token       registry.WriteToken
	verifier    IntegrityVerifier
	invalidator ContextInvalidator
	parser      manifest.Parser
	logger      *slog.Logger

	// mu serializes lifecycle mutations: the escalation comparison and the
	// grant swap of Update must form one critical section, and Uninstall
	// must not interleave with either. It also guards pending.
	mu      sync.Mutex
	pending map[registry.InstallID]*Escalation
}

// Option configures a Loader.
type Option func(*Loader)

// WithParser sets the manifest parser. Defaults to JSON.
func WithParser(p manifest.Parser) Option {
	return func(l *Loader) { l.parser = p }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// New creates a Loader. The registry, its write token, the external
// integrity verifier and the context invalidator are required.
func New(
	reg *registry.Registry,
	tok registry.WriteToken,
	verifier IntegrityVerifier,
	invalidator ContextInvalidator,
	opts ...Option,
) *Loader {
	l := &Loader{
		registry:    reg,
		token:       tok,
		verifier:    verifier,
		invalidator: invalidator,
		parser:      manifest.NewJSONParser(),
		logger:      slog.Default(),
		pending:     make(map[registry.InstallID]*Escalation),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// prepare runs the shared front half of install and update: verify
// integrity, parse, resolve. No registry state is touched; abandoning the
// call here leaves nothing visible to any reader.
func (l *Loader) prepare(ctx context.Context, pkg []byte) (*manifest.Manifest, *permission.Grant, error) {
	if err := l.verifier.Verify(ctx, pkg); err != nil {
		return nil, nil, &IntegrityError{Err: err}
	}

	m, err := l.parser.Parse(pkg)
	if err != nil {
		return nil, nil, err
	}

	grant, err := permission.Resolve(m)
	if err != nil {
		return nil, nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return m, grant, nil
}

// Install verifies, parses and registers a new package. Extensions are
// disabled on first install; enabling is a separate, explicit step.
func (l *Loader) Install(ctx context.Context, pkg []byte, source registry.Source) (registry.InstallID, error) {
	m, grant, err := l.prepare(ctx, pkg)
	if err != nil {
		return "", err
	}

	id, err := l.registry.Insert(l.token, m, grant, source)
	if err != nil {
		return "", err
	}
	if err := l.registry.SetState(l.token, id, registry.StateInstalled); err != nil {
		return "", fmt.Errorf("commit install: %w", err)
	}
	if err := l.registry.SetState(l.token, id, registry.StateDisabled); err != nil {
		return "", fmt.Errorf("commit install: %w", err)
	}

	l.logger.Info("extension installed",
		"install_id", id,
		"name", m.Name,
		"version", m.Version.String(),
		"generation", m.Generation.String(),
		"source", source.String())
	return id, nil
}

// UpdateOption configures one Update call.
type UpdateOption func(*updateConfig)

type updateConfig struct {
	approval    ApprovalToken
	hasApproval bool
}

// WithApproval attaches an approval token authorizing a previously reported
// escalation.
func WithApproval(tok ApprovalToken) UpdateOption {
	return func(c *updateConfig) {
		c.approval = tok
		c.hasApproval = true
	}
}

// Update replaces an installed extension's package. An update whose grant
// is equal-or-narrower than the stored grant applies atomically; one that
// escalates is held pending and returns an EscalationError until re-invoked
// with a matching approval token. Narrowing is accepted silently.
func (l *Loader) Update(ctx context.Context, id registry.InstallID, pkg []byte, opts ...UpdateOption) error {
	var cfg updateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m, grant, err := l.prepare(ctx, pkg)
	if err != nil {
		return err
	}

	// Read, compare and swap under one lock: two racing updates must not
	// both validate their grants against the same stored grant.
	l.mu.Lock()
	defer l.mu.Unlock()

	view, err := l.registry.Get(id)
	if err != nil {
		return err
	}
	if view.State == registry.StateInstalling || view.State == registry.StateUninstalling {
		return &registry.InconsistentStateError{ID: id, From: view.State, To: view.State, Op: "update"}
	}

	if newVersion, oldVersion := m.Version, view.Manifest.Version; newVersion.LessThan(oldVersion) {
		l.logger.Warn("update downgrades version",
			"install_id", id, "from", oldVersion.String(), "to", newVersion.String())
	}

	if !grant.SubsetOf(view.Grant) {
		esc := &Escalation{
			InstallID:   id,
			Name:        m.Name,
			Current:     view.Grant,
			Requested:   grant,
			Fingerprint: grant.Fingerprint(),
		}

		if !cfg.hasApproval {
			l.pending[id] = esc
			l.logger.Info("update held pending approval", "install_id", id, "name", m.Name)
			return &EscalationError{Escalation: *esc}
		}
		if !cfg.approval.matches(esc) {
			return ErrApprovalMismatch
		}
	}

	if err := l.registry.ReplaceGrant(l.token, id, m, grant); err != nil {
		return err
	}

	// Live contexts still carry the old grant; invalidate them so the
	// sandbox manager recreates them from the new grant on next access.
	l.invalidator.Invalidate(id)

	delete(l.pending, id)

	l.logger.Info("extension updated",
		"install_id", id, "name", m.Name, "version", m.Version.String())
	return nil
}

// PendingEscalation returns the escalation currently holding an update for
// the extension, if any.
func (l *Loader) PendingEscalation(id registry.InstallID) (*Escalation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	esc, ok := l.pending[id]
	return esc, ok
}

// Uninstall tears down an extension: contexts are invalidated strictly
// before the registry entry is removed, so no context can outlive its
// backing entry.
func (l *Loader) Uninstall(id registry.InstallID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	view, err := l.registry.Get(id)
	if err != nil {
		return err
	}

	if err := l.registry.SetState(l.token, id, registry.StateUninstalling); err != nil {
		return err
	}

	l.invalidator.Invalidate(id)

	if err := l.registry.Remove(l.token, id); err != nil {
		return err
	}

	delete(l.pending, id)

	l.logger.Info("extension uninstalled", "install_id", id, "name", view.Name)
	return nil
}
