package sandbox

import (
	"net/url"
	"strings"
)

// SecurityPolicy is the set of content rules active for every context the
// manager creates: CSP, origin restrictions, and resource-scheme limits.
// The policy engine consults it before host-scope matching, so a blocked
// resource is denied even when the grant would otherwise permit it.
type SecurityPolicy struct {
	CSPEnabled        bool
	SameOriginPolicy  bool
	AllowFileURLs     bool
	BlockMixedContent bool
}

// StrictPolicy returns the default policy: CSP on, same-origin on, file
// URLs blocked, mixed content blocked.
func StrictPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		CSPEnabled:        true,
		SameOriginPolicy:  true,
		AllowFileURLs:     false,
		BlockMixedContent: true,
	}
}

// PermissivePolicy returns a development policy with every restriction off.
func PermissivePolicy() *SecurityPolicy {
	return &SecurityPolicy{
		CSPEnabled:        false,
		SameOriginPolicy:  false,
		AllowFileURLs:     true,
		BlockMixedContent: false,
	}
}

// AllowResource reports whether the content rules permit touching the URL
// at all, independent of any grant.
func (p *SecurityPolicy) AllowResource(u *url.URL) bool {
	if u == nil {
		return false
	}
	if strings.EqualFold(u.Scheme, "file") && !p.AllowFileURLs {
		return false
	}
	return true
}
