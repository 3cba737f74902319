// Package urlcheck validates a user-supplied verification URL against a
// scheme and host-denylist policy. Pure, no I/O.
package urlcheck

import (
	"net/url"
	"strings"
)

// Filter rejects verification URLs that are not plain https links to a real
// host, or that point at a denylisted shortener/paste domain.
type Filter struct {
	denylist []string
}

// NewFilter creates a filter. Denylist entries are matched lower-cased,
// exactly or as a parent domain.
func NewFilter(denylist []string) *Filter {
	lowered := make([]string, 0, len(denylist))
	for _, d := range denylist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			lowered = append(lowered, d)
		}
	}
	return &Filter{denylist: lowered}
}

// Check reports whether raw is acceptable and returns the lower-cased host
// for use in the outgoing email subject.
func (f *Filter) Check(raw string) (bool, string) {
	if strings.TrimSpace(raw) == "" {
		return false, ""
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false, ""
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return false, ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false, ""
	}

	for _, d := range f.denylist {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false, ""
		}
	}

	// Bare hostnames (localhost and friends) never verify anyone.
	if !strings.Contains(host, ".") {
		return false, ""
	}

	return true, host
}
