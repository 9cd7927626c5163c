// Package urlnorm converts user-controlled URL input into the canonical
// hostnames the decision engine trusts. This is the only boundary doing that
// conversion; callers must not feed raw input to the engine.
package urlnorm

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalHostname returns a hostname in canonical form:
//   - Trimmed of surrounding whitespace
//   - Lowercased (hostnames are case-insensitive)
//   - No trailing dots
//   - Unicode labels converted to ASCII (punycode) when possible
func CanonicalHostname(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	if ascii, err := idna.ToASCII(name); err == nil && ascii != "" {
		name = ascii
	}
	return name
}

// HostnameFromURL extracts a canonical hostname from a raw user-entered URL
// or bare hostname. When the input has no scheme, "https://" is assumed. On
// parse failure the original input is returned unchanged; callers should
// treat that as best-effort, not authoritative.
func HostnameFromURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return CanonicalHostname(u.Hostname())
}
