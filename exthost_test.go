package exthost_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exthost "github.com/veilbrowser/extension-host"
	"github.com/veilbrowser/extension-host/approval"
	"github.com/veilbrowser/extension-host/loader"
	"github.com/veilbrowser/extension-host/permission"
	"github.com/veilbrowser/extension-host/policy"
	"github.com/veilbrowser/extension-host/registry"
	"github.com/veilbrowser/extension-host/sandbox"
)

const hostPkgV1 = `{
  "manifest_version": 3,
  "name": "annotator",
  "version": "1.0.0",
  "background": {"service_worker": "worker.js"},
  "content_scripts": [
    {"matches": ["*://*.example.com/*"], "js": ["inject.js"]}
  ],
  "permissions": ["tabs", "storage"],
  "host_permissions": ["https://api.other.net/*"]
}`

const hostPkgV2Escalated = `{
  "manifest_version": 3,
  "name": "annotator",
  "version": "2.0.0",
  "background": {"service_worker": "worker.js"},
  "permissions": ["tabs", "storage", "cookies"],
  "host_permissions": ["*://*/*"]
}`

type okVerifier struct{}

func (okVerifier) Verify(context.Context, []byte) error { return nil }

func newHost(opts ...exthost.Option) (*exthost.Host, *policy.MemorySink) {
	sink := &policy.MemorySink{}
	opts = append([]exthost.Option{exthost.WithAuditSink(sink)}, opts...)
	return exthost.New(okVerifier{}, opts...), sink
}

func installEnabled(t *testing.T, h *exthost.Host, pkg string) registry.InstallID {
	t.Helper()
	id, err := h.Install(context.Background(), []byte(pkg), registry.SourceLocal)
	require.NoError(t, err)
	require.NoError(t, h.SetEnabled(id, true))
	return id
}

// Full lifecycle: install a generation-3 package, enable it, activate its
// background context, and exercise a capability inside the granted scope.
func TestHost_InstallActivateAndCheck(t *testing.T) {
	h, sink := newHost()

	id, err := h.Install(context.Background(), []byte(hostPkgV1), registry.SourceLocal)
	require.NoError(t, err)

	view, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, registry.StateDisabled, view.State, "fresh installs start disabled")

	// Activation before enabling fails.
	_, err = h.Activate(id)
	assert.ErrorIs(t, err, sandbox.ErrNotEnabled)

	require.NoError(t, h.SetEnabled(id, true))
	ctx, err := h.Activate(id)
	require.NoError(t, err)

	d := h.Check(ctx.ID(), permission.Scripting, "https://docs.example.com/page")
	assert.True(t, d.Allowed())
	assert.Equal(t, "*://*.example.com/*", d.Pattern)

	d = h.Check(ctx.ID(), permission.Scripting, "https://other.net/")
	assert.False(t, d.Allowed())
	assert.Equal(t, policy.ReasonHostNotInScope, d.Reason)

	assert.Equal(t, 2, sink.Len(), "one audit record per check")
}

// An escalating update is held, then applies once the reported escalation is
// approved; live contexts are re-created from the new grant.
func TestHost_EscalatedUpdateRoundTrip(t *testing.T) {
	h, _ := newHost()
	id := installEnabled(t, h, hostPkgV1)

	oldCtx, err := h.Activate(id)
	require.NoError(t, err)

	err = h.Update(context.Background(), id, []byte(hostPkgV2Escalated))
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrPermissionEscalation)

	// The held update leaves the old grant and old contexts intact.
	view, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", view.Version)
	assert.False(t, oldCtx.Invalidated())

	esc, ok := h.PendingEscalation(id)
	require.True(t, ok)
	assert.True(t, esc.Broad())

	tok := loader.NewApprovalToken(id, esc.Fingerprint)
	require.NoError(t, h.Update(context.Background(), id, []byte(hostPkgV2Escalated), loader.WithApproval(tok)))

	assert.True(t, oldCtx.Invalidated(), "contexts from the old grant do not survive")

	fresh, err := h.Activate(id)
	require.NoError(t, err)
	assert.True(t, fresh.Has(permission.Cookies))

	d := h.Check(fresh.ID(), permission.Cookies, "https://anywhere.net/")
	assert.True(t, d.Allowed())
}

// Disabling tears down live contexts; checks against them deny from then on.
func TestHost_DisableInvalidatesAndDenies(t *testing.T) {
	h, _ := newHost()
	id := installEnabled(t, h, hostPkgV1)

	ctx, err := h.Activate(id)
	require.NoError(t, err)
	require.True(t, h.Check(ctx.ID(), permission.Tabs, "1").Allowed())

	require.NoError(t, h.SetEnabled(id, false))

	d := h.Check(ctx.ID(), permission.Tabs, "1")
	assert.False(t, d.Allowed())
	assert.Equal(t, policy.ReasonContextInvalidated, d.Reason)

	// Re-enabling does not resurrect the old context.
	require.NoError(t, h.SetEnabled(id, true))
	d = h.Check(ctx.ID(), permission.Tabs, "1")
	assert.False(t, d.Allowed())
	assert.Equal(t, policy.ReasonContextInvalidated, d.Reason)
}

// Uninstall removes the entry and every trace of its contexts.
func TestHost_UninstallDeniesOutstandingContexts(t *testing.T) {
	h, _ := newHost()
	id := installEnabled(t, h, hostPkgV1)

	bg, err := h.Activate(id)
	require.NoError(t, err)
	tab, err := h.ActivateForTab(id, 4, "https://docs.example.com/")
	require.NoError(t, err)

	require.NoError(t, h.Uninstall(id))

	_, err = h.Get(id)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Empty(t, h.List())

	for _, ctxID := range []sandbox.ContextID{bg.ID(), tab.ID()} {
		d := h.Check(ctxID, permission.Tabs, "1")
		assert.False(t, d.Allowed())
		assert.Equal(t, policy.ReasonContextInvalidated, d.Reason)
	}
}

func TestHost_TabActivationScopesToMatchedPattern(t *testing.T) {
	h, _ := newHost()
	id := installEnabled(t, h, hostPkgV1)

	ctx, err := h.ActivateForTab(id, 9, "https://api.other.net/v2")
	require.NoError(t, err)

	tabID, scoped := ctx.Tab()
	assert.True(t, scoped)
	assert.Equal(t, 9, tabID)

	// Only the matched pattern is in scope for this context.
	d := h.Check(ctx.ID(), permission.Scripting, "https://api.other.net/v2/items")
	assert.True(t, d.Allowed())
	d = h.Check(ctx.ID(), permission.Scripting, "https://docs.example.com/")
	assert.False(t, d.Allowed())
	assert.Equal(t, policy.ReasonHostNotInScope, d.Reason)

	_, err = h.ActivateForTab(id, 9, "https://unrelated.org/")
	// The existing live context for this tab wins over a new URL match.
	require.NoError(t, err)
}

func TestHost_InvalidateContext(t *testing.T) {
	h, _ := newHost()
	id := installEnabled(t, h, hostPkgV1)

	ctx, err := h.Activate(id)
	require.NoError(t, err)

	h.InvalidateContext(ctx.ID())
	assert.True(t, ctx.Invalidated())

	d := h.Check(ctx.ID(), permission.Tabs, "1")
	assert.Equal(t, policy.ReasonContextInvalidated, d.Reason)
}

func TestHost_ListAndSchemas(t *testing.T) {
	h, _ := newHost()
	installEnabled(t, h, hostPkgV1)

	views := h.List()
	require.Len(t, views, 1)
	assert.Equal(t, "annotator", views[0].Name)

	catalog := h.Schemas()
	require.NotNil(t, catalog)
	_, ok := catalog.Schema("registry_record")
	assert.True(t, ok)
	_, ok = catalog.Schema("audit_record")
	assert.True(t, ok)
}

func TestHost_UpdateWithApprovalPermissive(t *testing.T) {
	gk := approval.NewGatekeeper(
		approval.WithSecurityLevel(approval.SecurityPermissive))
	h, _ := newHost(exthost.WithGatekeeper(gk))
	id := installEnabled(t, h, hostPkgV1)

	require.NoError(t, h.UpdateWithApproval(context.Background(), id, []byte(hostPkgV2Escalated)))

	view, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", view.Version)
}

func TestHost_UpdateWithApprovalStrictDeniesBroad(t *testing.T) {
	gk := approval.NewGatekeeper(
		approval.WithSecurityLevel(approval.SecurityStrict))
	h, _ := newHost(exthost.WithGatekeeper(gk))
	id := installEnabled(t, h, hostPkgV1)

	err := h.UpdateWithApproval(context.Background(), id, []byte(hostPkgV2Escalated))
	require.Error(t, err)
	assert.ErrorIs(t, err, approval.ErrDenied)

	// The denied update never touches the stored grant.
	view, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", view.Version)
}

func TestHost_UpdateWithApprovalNonEscalating(t *testing.T) {
	h, _ := newHost()
	id := installEnabled(t, h, hostPkgV1)

	narrower := `{
	  "manifest_version": 3,
	  "name": "annotator",
	  "version": "1.0.1",
	  "background": {"service_worker": "worker.js"},
	  "permissions": ["tabs"]
	}`
	// No escalation means no gatekeeper involvement at all.
	require.NoError(t, h.UpdateWithApproval(context.Background(), id, []byte(narrower)))
}

func TestHost_SecurityPolicyOption(t *testing.T) {
	h, _ := newHost(exthost.WithSecurityPolicy(sandbox.PermissivePolicy()))
	id := installEnabled(t, h, hostPkgV1)

	ctx, err := h.Activate(id)
	require.NoError(t, err)
	assert.False(t, ctx.ContentRules().CSPEnabled)
}
