package engine

import (
	"context"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
)

// RuleSource is the read-side view of the store the engine evaluates against.
// Implementations must serialize snapshot reads against mutations so a single
// evaluation never observes a half-applied change.
type RuleSource interface {
	// GetUser returns the user for id, or domain.ErrNotFound.
	GetUser(ctx context.Context, id int64) (domain.User, error)

	// GetAppSettings returns the settings singleton.
	GetAppSettings(ctx context.Context) (domain.AppSettings, error)

	// ListWebsiteRules returns all rules in insertion order. The matching
	// contract depends on that order.
	ListWebsiteRules(ctx context.Context) ([]domain.WebsiteRule, error)
}

// MatchResult is the outcome of matching one domain against the rule set.
// Found is false when no rule covers the domain and the default policy
// applies.
type MatchResult struct {
	Rule  domain.WebsiteRule
	Found bool
}

// MatchIndex accelerates rule lookups for non-exempt users. Implementations
// must be rebuilt or purged whenever the rule set changes; the engine assumes
// a negative MightMatch answer is authoritative for the current rules.
//
// The generation protocol closes the race between a scan and a concurrent
// rule mutation: callers read Generation before listing the rules and hand it
// back to Put, which must discard the result when the index has moved on in
// between. A result computed against a replaced rule set is never cached.
type MatchIndex interface {
	// MightMatch returns false only when no rule can possibly cover name.
	MightMatch(name string) bool

	// Get returns a previously cached match for name.
	Get(name string) (MatchResult, bool)

	// Generation identifies the rule snapshot the index currently reflects.
	// It changes on every Rebuild and Purge.
	Generation() uint64

	// Put caches the match for name, unless generation is no longer current.
	Put(name string, m MatchResult, generation uint64)
}
