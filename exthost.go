// Package exthost assembles the extension host: manifest parsing,
// permission resolution, the install registry, the lifecycle loader, the
// sandbox context manager and the capability policy engine, wired together
// with the single-writer discipline the subsystem requires.
package exthost

import (
	"context"
	"errors"
	"log/slog"

	"github.com/veilbrowser/extension-host/approval"
	"github.com/veilbrowser/extension-host/loader"
	"github.com/veilbrowser/extension-host/manifest"
	"github.com/veilbrowser/extension-host/permission"
	"github.com/veilbrowser/extension-host/policy"
	"github.com/veilbrowser/extension-host/registry"
	"github.com/veilbrowser/extension-host/sandbox"
	"github.com/veilbrowser/extension-host/schema"
)

// Host is the assembled extension subsystem. The registry write token is
// held by the internal loader alone; every mutation routes through the
// lifecycle methods here.
type Host struct {
	registry   *registry.Registry
	loader     *loader.Loader
	sandbox    *sandbox.Manager
	engine     *policy.Engine
	gatekeeper *approval.Gatekeeper
	catalog    *schema.Catalog
	logger     *slog.Logger
}

// Option configures a Host.
type Option func(*options)

type options struct {
	store      registry.Store
	sink       policy.Sink
	rules      *sandbox.SecurityPolicy
	parser     manifest.Parser
	gatekeeper *approval.Gatekeeper
	logger     *slog.Logger
}

// WithStore sets the registry's persistence collaborator.
func WithStore(s registry.Store) Option {
	return func(o *options) { o.store = s }
}

// WithAuditSink sets the policy engine's audit sink.
func WithAuditSink(s policy.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithSecurityPolicy sets the content rules applied to sandbox contexts.
func WithSecurityPolicy(p *sandbox.SecurityPolicy) Option {
	return func(o *options) { o.rules = p }
}

// WithParser sets the manifest parser. Defaults to JSON.
func WithParser(p manifest.Parser) Option {
	return func(o *options) { o.parser = p }
}

// WithGatekeeper sets the escalation approval authority used by
// UpdateWithApproval.
func WithGatekeeper(g *approval.Gatekeeper) Option {
	return func(o *options) { o.gatekeeper = g }
}

// WithLogger sets the logger for every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New assembles a Host. The integrity verifier is the external collaborator
// that vouches for package bytes before any parsing happens; it is required.
func New(verifier loader.IntegrityVerifier, opts ...Option) *Host {
	o := &options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	regOpts := []registry.Option{registry.WithLogger(o.logger)}
	if o.store != nil {
		regOpts = append(regOpts, registry.WithStore(o.store))
	}
	reg, tok := registry.New(regOpts...)

	sbOpts := []sandbox.Option{sandbox.WithLogger(o.logger)}
	if o.rules != nil {
		sbOpts = append(sbOpts, sandbox.WithSecurityPolicy(o.rules))
	}
	sb := sandbox.NewManager(reg, sbOpts...)
	reg.SetObserver(sb)

	ldOpts := []loader.Option{loader.WithLogger(o.logger)}
	if o.parser != nil {
		ldOpts = append(ldOpts, loader.WithParser(o.parser))
	}
	ld := loader.New(reg, tok, verifier, sb, ldOpts...)

	engOpts := []policy.Option{}
	if o.sink != nil {
		engOpts = append(engOpts, policy.WithSink(o.sink))
	}
	eng := policy.NewEngine(sb, engOpts...)

	gk := o.gatekeeper
	if gk == nil {
		gk = approval.NewGatekeeper(approval.WithLogger(o.logger))
	}

	return &Host{
		registry:   reg,
		loader:     ld,
		sandbox:    sb,
		engine:     eng,
		gatekeeper: gk,
		catalog:    schema.Default(),
		logger:     o.logger,
	}
}

// Install verifies and registers a new extension package. Newly installed
// extensions start disabled.
func (h *Host) Install(ctx context.Context, pkg []byte, source registry.Source) (registry.InstallID, error) {
	return h.loader.Install(ctx, pkg, source)
}

// Update replaces an installed extension's package. Escalating updates are
// held and reported as a *loader.EscalationError until re-invoked with an
// approval token.
func (h *Host) Update(ctx context.Context, id registry.InstallID, pkg []byte, opts ...loader.UpdateOption) error {
	return h.loader.Update(ctx, id, pkg, opts...)
}

// UpdateWithApproval runs Update and, when the new package escalates, routes
// the escalation through the configured gatekeeper and retries with the
// issued approval token. A gatekeeper denial surfaces unchanged.
func (h *Host) UpdateWithApproval(ctx context.Context, id registry.InstallID, pkg []byte) error {
	err := h.loader.Update(ctx, id, pkg)
	var esc *loader.EscalationError
	if !errors.As(err, &esc) {
		return err
	}

	tok, err := h.gatekeeper.Review(&esc.Escalation)
	if err != nil {
		return err
	}
	return h.loader.Update(ctx, id, pkg, loader.WithApproval(tok))
}

// PendingEscalation reports the escalation currently holding an update for
// the extension, if any.
func (h *Host) PendingEscalation(id registry.InstallID) (*loader.Escalation, bool) {
	return h.loader.PendingEscalation(id)
}

// Uninstall removes an extension, invalidating its contexts first.
func (h *Host) Uninstall(id registry.InstallID) error {
	return h.loader.Uninstall(id)
}

// SetEnabled enables or disables an installed extension. Disabling
// invalidates all its live sandbox contexts before returning.
func (h *Host) SetEnabled(id registry.InstallID, enabled bool) error {
	return h.registry.SetEnabled(id, enabled)
}

// Get returns an immutable view of one installed extension.
func (h *Host) Get(id registry.InstallID) (registry.View, error) {
	return h.registry.Get(id)
}

// List returns views of all installed extensions, ordered by install id.
func (h *Host) List() []registry.View {
	return h.registry.List()
}

// Activate returns the extension's background context, creating it on first
// use. The extension must be enabled.
func (h *Host) Activate(id registry.InstallID) (*sandbox.Context, error) {
	return h.sandbox.Activate(id)
}

// ActivateForTab returns the extension's content-script context for a tab,
// creating it if the URL falls inside the extension's host scope.
func (h *Host) ActivateForTab(id registry.InstallID, tab int, rawURL string) (*sandbox.Context, error) {
	return h.sandbox.ActivateForTab(id, tab, rawURL)
}

// InvalidateContext tears down a single sandbox context.
func (h *Host) InvalidateContext(id sandbox.ContextID) {
	h.sandbox.InvalidateContext(id)
}

// Check decides whether a context may exercise a capability against a
// target, emitting one audit record per call.
func (h *Host) Check(id sandbox.ContextID, cap permission.Capability, target string) policy.Decision {
	return h.engine.Check(id, cap, target)
}

// Schemas returns the catalog of the host's durable record shapes.
func (h *Host) Schemas() *schema.Catalog {
	return h.catalog
}
