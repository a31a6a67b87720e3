package manifest

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchPattern is a parsed URL match pattern of the form
// <scheme>://<host><path>, e.g. "*://*.example.com/*".
// Scheme is "*", "http" or "https"; host is "*", a literal host, or a
// "*."-prefixed host; path starts with "/" and may contain "*".
type MatchPattern struct {
	scheme string
	host   string
	path   string
}

// ParsePattern parses and canonicalizes a match pattern string.
// Fails with an InvalidHostPatternError when the string is outside the
// grammar.
func ParsePattern(raw string) (MatchPattern, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return MatchPattern{}, &InvalidHostPatternError{Pattern: raw, Reason: "missing scheme separator"}
	}

	scheme = strings.ToLower(scheme)
	switch scheme {
	case "*", "http", "https":
	default:
		return MatchPattern{}, &InvalidHostPatternError{Pattern: raw, Reason: "scheme must be *, http or https"}
	}

	host := rest
	path := "/"
	if idx := strings.Index(rest, "/"); idx >= 0 {
		host = rest[:idx]
		path = rest[idx:]
	}

	host = strings.ToLower(host)
	if err := validatePatternHost(host); err != "" {
		return MatchPattern{}, &InvalidHostPatternError{Pattern: raw, Reason: err}
	}

	return MatchPattern{scheme: scheme, host: host, path: path}, nil
}

// MustParsePattern parses a pattern or panics. Test and fixture helper.
func MustParsePattern(raw string) MatchPattern {
	p, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func validatePatternHost(host string) string {
	if host == "" {
		return "host cannot be empty"
	}
	if host == "*" {
		return ""
	}

	bare := host
	if rest, ok := strings.CutPrefix(host, "*."); ok {
		bare = rest
	}
	if bare == "" {
		return "wildcard host must name a domain"
	}
	if strings.Contains(bare, "*") {
		return "wildcard is only allowed as a leading *. label"
	}
	if strings.Contains(bare, ":") {
		return "host cannot carry a port"
	}
	if strings.HasPrefix(bare, ".") || strings.HasSuffix(bare, ".") || strings.Contains(bare, "..") {
		return "host has empty labels"
	}
	return ""
}

// Scheme returns the pattern's scheme component.
func (p MatchPattern) Scheme() string { return p.scheme }

// Host returns the pattern's host component.
func (p MatchPattern) Host() string { return p.host }

// Path returns the pattern's path component.
func (p MatchPattern) Path() string { return p.path }

// IsZero reports whether p is the zero pattern.
func (p MatchPattern) IsZero() bool { return p.scheme == "" }

// String returns the canonical pattern string.
func (p MatchPattern) String() string {
	return p.scheme + "://" + p.host + p.path
}

// MatchesURL reports whether the URL falls inside this pattern.
func (p MatchPattern) MatchesURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	switch p.scheme {
	case "*":
		if scheme != "http" && scheme != "https" {
			return false
		}
	default:
		if scheme != p.scheme {
			return false
		}
	}
	if !p.matchesHost(strings.ToLower(u.Hostname())) {
		return false
	}
	return p.matchesPath(u.EscapedPath())
}

func (p MatchPattern) matchesHost(host string) bool {
	if host == "" {
		return false
	}
	if p.host == "*" {
		return true
	}
	if base, ok := strings.CutPrefix(p.host, "*."); ok {
		return host == base || strings.HasSuffix(host, "."+base)
	}
	return host == p.host
}

func (p MatchPattern) matchesPath(path string) bool {
	if path == "" {
		path = "/"
	}
	ok, err := doublestar.Match(pathGlob(p.path), path)
	return err == nil && ok
}

// pathGlob translates a match-pattern path into a doublestar glob. "*"
// crosses segment boundaries, so it becomes "**"; every other glob
// metacharacter in the pattern grammar is a literal and gets escaped.
func pathGlob(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 2)
	for _, r := range p {
		switch r {
		case '*':
			b.WriteString("**")
		case '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Covers reports whether every URL matched by other is also matched by p.
// Used to collapse redundant narrow patterns into their covering grant.
func (p MatchPattern) Covers(other MatchPattern) bool {
	return p.coversScheme(other) && p.coversHost(other) && p.coversPath(other)
}

func (p MatchPattern) coversScheme(other MatchPattern) bool {
	return p.scheme == "*" || p.scheme == other.scheme
}

func (p MatchPattern) coversHost(other MatchPattern) bool {
	if p.host == "*" {
		return true
	}
	if other.host == "*" {
		return false
	}
	base, wild := strings.CutPrefix(p.host, "*.")
	if !wild {
		return p.host == other.host
	}
	otherBare := strings.TrimPrefix(other.host, "*.")
	return otherBare == base || strings.HasSuffix(otherBare, "."+base)
}

func (p MatchPattern) coversPath(other MatchPattern) bool {
	if p.path == other.path {
		return true
	}
	if p.path == "/*" {
		return true
	}
	if !strings.Contains(other.path, "*") {
		return p.matchesPath(other.path)
	}
	return false
}

// Specificity orders patterns for longest-match-wins decisions: an exact
// host beats a wildcard-subdomain host, which beats the bare "*" host;
// scheme and path act as tie breakers.
func (p MatchPattern) Specificity() int {
	score := 0
	switch {
	case p.host == "*":
	case strings.HasPrefix(p.host, "*."):
		score += 8
	default:
		score += 16
	}
	if p.scheme != "*" {
		score += 4
	}
	if !strings.Contains(p.path, "*") {
		score += 1
	}
	return score
}
