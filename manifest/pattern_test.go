package manifest_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbrowser/extension-host/manifest"
)

func TestParsePattern_Valid(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		canonical string
	}{
		{"wildcard everything", "*://*/*", "*://*/*"},
		{"exact host", "https://example.com/", "https://example.com/"},
		{"subdomain wildcard", "*://*.example.com/*", "*://*.example.com/*"},
		{"path glob", "https://example.com/api/*", "https://example.com/api/*"},
		{"missing path defaults to root", "https://example.com", "https://example.com/"},
		{"scheme and host lowercased", "HTTPS://Example.COM/Path", "https://example.com/Path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := manifest.ParsePattern(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, p.String())
		})
	}
}

func TestParsePattern_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no scheme separator", "example.com/*"},
		{"unsupported scheme", "ftp://example.com/*"},
		{"all_urls shorthand", "<all_urls>"},
		{"empty host", "https:///*"},
		{"wildcard mid-label", "https://ex*ample.com/*"},
		{"wildcard without domain", "https://*./*"},
		{"port in host", "https://example.com:8080/*"},
		{"empty label", "https://example..com/*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.ParsePattern(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, manifest.ErrInvalidHostPattern)

			var perr *manifest.InvalidHostPatternError
			require.ErrorAs(t, err, &perr)
			assert.NotEmpty(t, perr.Reason)
		})
	}
}

func TestMatchPattern_MatchesURL(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		url     string
		want    bool
	}{
		{"wildcard scheme matches http", "*://example.com/*", "http://example.com/page", true},
		{"wildcard scheme matches https", "*://example.com/*", "https://example.com/page", true},
		{"wildcard scheme rejects ftp", "*://example.com/*", "ftp://example.com/page", false},
		{"exact scheme mismatch", "https://example.com/*", "http://example.com/page", false},
		{"wildcard host matches anything", "*://*/*", "https://anything.at.all/x", true},
		{"subdomain wildcard matches subdomain", "*://*.example.com/*", "https://api.example.com/v1", true},
		{"subdomain wildcard matches base domain", "*://*.example.com/*", "https://example.com/v1", true},
		{"subdomain wildcard matches deep subdomain", "*://*.example.com/*", "https://a.b.example.com/", true},
		{"subdomain wildcard rejects suffix trick", "*://*.example.com/*", "https://evilexample.com/", false},
		{"exact host rejects subdomain", "https://example.com/*", "https://api.example.com/", false},
		{"path glob crosses segments", "https://example.com/api/*", "https://example.com/api/v1/users", true},
		{"path literal requires exact", "https://example.com/api", "https://example.com/api/v1", false},
		{"root glob matches empty path", "https://example.com/*", "https://example.com", true},
		{"path outside glob", "https://example.com/api/*", "https://example.com/admin", false},
		{"question mark in path is literal", "https://example.com/a?b", "https://example.com/axb", false},
		{"brackets in path are literal", "https://example.com/a[xy]", "https://example.com/ax", false},
		{"braces in path are literal", "https://example.com/{a,b}", "https://example.com/a", false},
		{"backslash in path is literal", "https://example.com/a\\*", "https://example.com/ab", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := manifest.MustParsePattern(tt.pattern)
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.MatchesURL(u))
		})
	}
}

func TestMatchPattern_Covers(t *testing.T) {
	tests := []struct {
		name  string
		outer string
		inner string
		want  bool
	}{
		{"identical", "https://example.com/*", "https://example.com/*", true},
		{"wildcard scheme covers concrete", "*://example.com/*", "https://example.com/*", true},
		{"concrete scheme does not cover wildcard", "https://example.com/*", "*://example.com/*", false},
		{"wildcard host covers everything", "*://*/*", "https://example.com/api/*", true},
		{"subdomain wildcard covers subdomain", "*://*.example.com/*", "*://api.example.com/*", true},
		{"subdomain wildcard covers base", "*://*.example.com/*", "*://example.com/*", true},
		{"subdomain wildcard covers narrower wildcard", "*://*.example.com/*", "*://*.api.example.com/*", true},
		{"narrow does not cover broad", "*://api.example.com/*", "*://*.example.com/*", false},
		{"root glob covers any path", "https://example.com/*", "https://example.com/api/v1", true},
		{"path glob covers literal inside", "https://example.com/api/*", "https://example.com/api/v1", true},
		{"path glob does not cover sibling", "https://example.com/api/*", "https://example.com/admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outer := manifest.MustParsePattern(tt.outer)
			inner := manifest.MustParsePattern(tt.inner)
			assert.Equal(t, tt.want, outer.Covers(inner))
		})
	}
}

func TestMatchPattern_Specificity(t *testing.T) {
	exact := manifest.MustParsePattern("https://api.example.com/v1")
	sub := manifest.MustParsePattern("https://*.example.com/*")
	anyHost := manifest.MustParsePattern("*://*/*")

	assert.Greater(t, exact.Specificity(), sub.Specificity())
	assert.Greater(t, sub.Specificity(), anyHost.Specificity())
}

func TestMatchPattern_IsZero(t *testing.T) {
	var zero manifest.MatchPattern
	assert.True(t, zero.IsZero())
	assert.False(t, manifest.MustParsePattern("*://*/*").IsZero())
}

func TestMatchPattern_ErrorTaxonomy(t *testing.T) {
	_, err := manifest.ParsePattern("bogus")
	assert.True(t, errors.Is(err, manifest.ErrInvalidHostPattern))
	assert.False(t, errors.Is(err, manifest.ErrMalformedSchema))
}

func FuzzParsePattern(f *testing.F) {
	f.Add("*://*/*")
	f.Add("https://example.com/api/*")
	f.Add("*://*.example.com/")
	f.Add("<all_urls>")
	f.Add("://")

	f.Fuzz(func(t *testing.T, raw string) {
		p, err := manifest.ParsePattern(raw)
		if err != nil {
			return
		}
		// A parsed pattern must round-trip through its canonical string.
		again, err := manifest.ParsePattern(p.String())
		if err != nil {
			t.Fatalf("canonical form %q failed to reparse: %v", p.String(), err)
		}
		if again.String() != p.String() {
			t.Fatalf("canonical form unstable: %q -> %q", p.String(), again.String())
		}
	})
}

func FuzzMatchesURL(f *testing.F) {
	pat := manifest.MustParsePattern("*://*.example.com/api/*")
	f.Add("https://api.example.com/api/v1")
	f.Add("file:///etc/passwd")
	f.Add("not a url")

	f.Fuzz(func(t *testing.T, raw string) {
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		// Matching must never panic, whatever the URL shape.
		pat.MatchesURL(u)
	})
}
