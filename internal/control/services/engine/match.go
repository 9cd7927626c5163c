package engine

import "github.com/rnProCoder/ControlledBrowsing/internal/control/domain"

// matchRules applies the precedence contract over an insertion-ordered rule
// sequence: an exact match wins regardless of position; otherwise the first
// wildcard rule covering name wins; otherwise no rule matches.
//
// Overlapping rules are legal (domains are not unique), so the outcome is
// deliberately order-sensitive rather than specificity-ranked: with
// "*.example.com" inserted before "*.com", a lookup of "x.example.com"
// takes the first rule.
func matchRules(rules []domain.WebsiteRule, name string) MatchResult {
	for _, r := range rules {
		if !r.IsWildcard() && r.Domain == name {
			return MatchResult{Rule: r, Found: true}
		}
	}
	for _, r := range rules {
		if r.MatchesWildcard(name) {
			return MatchResult{Rule: r, Found: true}
		}
	}
	return MatchResult{}
}
