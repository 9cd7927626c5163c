package domain

import (
	"fmt"
	"strings"
)

// WildcardPrefix marks a rule domain that matches a suffix and all its
// subdomains, e.g. "*.google.com".
const WildcardPrefix = "*."

// WebsiteRule is an administrator-defined policy entry mapping a hostname or
// wildcard pattern to an allow/block outcome.
//
// Domain is either a literal hostname ("facebook.com") or a wildcard pattern
// ("*.google.com"). Domains are not unique across rules; when rules overlap,
// precedence is decided by the engine's matching order, not here.
type WebsiteRule struct {
	ID            int64  `json:"id"`
	Domain        string `json:"domain"`
	IsAllowed     bool   `json:"isAllowed"`
	IsTimeLimited bool   `json:"isTimeLimited"`
	AppliedTo     string `json:"appliedTo"`
	CreatedBy     int64  `json:"createdBy"`
}

// NewWebsiteRule constructs a WebsiteRule and validates its fields.
func NewWebsiteRule(id int64, ruleDomain string, isAllowed, isTimeLimited bool, appliedTo string, createdBy int64) (WebsiteRule, error) {
	r := WebsiteRule{
		ID:            id,
		Domain:        strings.TrimSpace(ruleDomain),
		IsAllowed:     isAllowed,
		IsTimeLimited: isTimeLimited,
		AppliedTo:     strings.TrimSpace(appliedTo),
		CreatedBy:     createdBy,
	}
	if err := r.Validate(); err != nil {
		return WebsiteRule{}, err
	}
	return r, nil
}

// Validate checks the WebsiteRule for required fields and a well-formed
// domain pattern.
func (r WebsiteRule) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("rule id must be positive")
	}
	if err := ValidateRuleDomain(r.Domain); err != nil {
		return err
	}
	if r.CreatedBy <= 0 {
		return fmt.Errorf("rule createdBy must reference a user")
	}
	return nil
}

// ValidateRuleDomain checks that a rule domain is either a literal hostname
// or a wildcard pattern with a non-empty suffix.
func ValidateRuleDomain(d string) error {
	if d == "" {
		return fmt.Errorf("rule domain must not be empty")
	}
	if strings.HasPrefix(d, WildcardPrefix) {
		suffix := strings.TrimPrefix(d, WildcardPrefix)
		if suffix == "" {
			return fmt.Errorf("wildcard rule must have a suffix: %q", d)
		}
		if strings.Contains(suffix, "*") {
			return fmt.Errorf("wildcard marker only allowed as %q prefix: %q", WildcardPrefix, d)
		}
		return nil
	}
	if strings.Contains(d, "*") {
		return fmt.Errorf("wildcard marker only allowed as %q prefix: %q", WildcardPrefix, d)
	}
	return nil
}

// IsWildcard returns true when the rule domain is a "*.suffix" pattern.
func (r WebsiteRule) IsWildcard() bool {
	return strings.HasPrefix(r.Domain, WildcardPrefix)
}

// Suffix returns the rule domain without the wildcard prefix. For literal
// rules it returns the domain unchanged.
func (r WebsiteRule) Suffix() string {
	return strings.TrimPrefix(r.Domain, WildcardPrefix)
}

// MatchesWildcard reports whether a wildcard rule covers name. The suffix is
// apex-inclusive: "*.google.com" matches both "google.com" and
// "mail.google.com", but only at label boundaries, so "notgoogle.com" does
// not match. Literal rules never match here.
func (r WebsiteRule) MatchesWildcard(name string) bool {
	if !r.IsWildcard() {
		return false
	}
	suffix := r.Suffix()
	return name == suffix || strings.HasSuffix(name, "."+suffix)
}
