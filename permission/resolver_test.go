package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbrowser/extension-host/manifest"
	"github.com/veilbrowser/extension-host/permission"
)

func parseFixture(t *testing.T, src string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.NewJSONParser().Parse([]byte(src))
	require.NoError(t, err)
	return m
}

func TestResolve_DeclaredCapabilities(t *testing.T) {
	m := parseFixture(t, `{
	  "manifest_version": 3,
	  "name": "x", "version": "1.0.0", "action": {},
	  "permissions": ["tabs", "storage", "cookies"],
	  "host_permissions": ["https://example.com/*"]
	}`)

	g, err := permission.Resolve(m)
	require.NoError(t, err)

	assert.True(t, g.Has(permission.Tabs))
	assert.True(t, g.Has(permission.Storage))
	assert.True(t, g.Has(permission.Cookies))
	assert.False(t, g.Has(permission.History))
	assert.Equal(t,
		[]permission.Capability{permission.Cookies, permission.Storage, permission.Tabs},
		g.Capabilities())
}

func TestResolve_UnknownToken(t *testing.T) {
	m := parseFixture(t, `{
	  "manifest_version": 3,
	  "name": "x", "version": "1.0.0", "action": {},
	  "permissions": ["clipboard"]
	}`)

	_, err := permission.Resolve(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, permission.ErrUnknownPermission)

	var uerr *permission.UnknownPermissionError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "clipboard", uerr.Token)
}

func TestResolve_ContentScriptImpliesScripting(t *testing.T) {
	m := parseFixture(t, `{
	  "manifest_version": 3,
	  "name": "x", "version": "1.0.0",
	  "content_scripts": [{"matches": ["https://example.com/*"], "js": ["a.js"]}]
	}`)

	g, err := permission.Resolve(m)
	require.NoError(t, err)

	assert.True(t, g.Has(permission.Scripting))
	assert.True(t, g.Implied(permission.Scripting))
}

func TestResolve_DeclaredScriptingIsNotImplied(t *testing.T) {
	m := parseFixture(t, `{
	  "manifest_version": 3,
	  "name": "x", "version": "1.0.0",
	  "permissions": ["scripting"],
	  "content_scripts": [{"matches": ["https://example.com/*"], "js": ["a.js"]}]
	}`)

	g, err := permission.Resolve(m)
	require.NoError(t, err)

	assert.True(t, g.Has(permission.Scripting))
	assert.False(t, g.Implied(permission.Scripting))
}

func TestResolve_ScopeNormalization(t *testing.T) {
	m := parseFixture(t, `{
	  "manifest_version": 3,
	  "name": "x", "version": "1.0.0", "action": {},
	  "host_permissions": [
	    "*://*.example.com/*",
	    "https://api.example.com/*",
	    "https://other.net/"
	  ]
	}`)

	g, err := permission.Resolve(m)
	require.NoError(t, err)

	// api.example.com is a strict subset of *.example.com and collapses away.
	scope := make([]string, 0, len(g.HostScope()))
	for _, p := range g.HostScope() {
		scope = append(scope, p.String())
	}
	assert.Equal(t, []string{"*://*.example.com/*", "https://other.net/"}, scope)
}

func TestResolve_Deterministic(t *testing.T) {
	src := `{
	  "manifest_version": 3,
	  "name": "x", "version": "1.0.0", "action": {},
	  "permissions": ["tabs", "network"],
	  "host_permissions": ["https://a.example.com/*", "https://b.example.com/*"]
	}`

	g1, err := permission.Resolve(parseFixture(t, src))
	require.NoError(t, err)
	g2, err := permission.Resolve(parseFixture(t, src))
	require.NoError(t, err)

	assert.True(t, g1.Equal(g2))
	assert.Equal(t, g1.Fingerprint(), g2.Fingerprint())
}

func TestVocabulary_HostScoped(t *testing.T) {
	tests := []struct {
		cap  permission.Capability
		want bool
	}{
		{permission.Tabs, false},
		{permission.Bookmarks, false},
		{permission.History, false},
		{permission.Storage, false},
		{permission.Cookies, true},
		{permission.WebRequest, true},
		{permission.Network, true},
		{permission.Scripting, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			assert.True(t, permission.Known(tt.cap))
			assert.Equal(t, tt.want, tt.cap.HostScoped())
		})
	}

	assert.False(t, permission.Known("clipboard"))
}
