package sandbox_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbrowser/extension-host/sandbox"
)

func TestSecurityPolicy_AllowResource(t *testing.T) {
	tests := []struct {
		name   string
		policy *sandbox.SecurityPolicy
		url    string
		want   bool
	}{
		{"strict allows https", sandbox.StrictPolicy(), "https://example.com/", true},
		{"strict allows http", sandbox.StrictPolicy(), "http://example.com/", true},
		{"strict blocks file", sandbox.StrictPolicy(), "file:///etc/passwd", false},
		{"strict blocks file uppercase", sandbox.StrictPolicy(), "FILE:///etc/passwd", false},
		{"permissive allows file", sandbox.PermissivePolicy(), "file:///tmp/data", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.policy.AllowResource(u))
		})
	}
}

func TestSecurityPolicy_AllowResourceNilURL(t *testing.T) {
	assert.False(t, sandbox.PermissivePolicy().AllowResource(nil))
}

func TestSecurityPolicy_Defaults(t *testing.T) {
	strict := sandbox.StrictPolicy()
	assert.True(t, strict.CSPEnabled)
	assert.True(t, strict.SameOriginPolicy)
	assert.False(t, strict.AllowFileURLs)
	assert.True(t, strict.BlockMixedContent)

	perm := sandbox.PermissivePolicy()
	assert.False(t, perm.CSPEnabled)
	assert.True(t, perm.AllowFileURLs)
}
