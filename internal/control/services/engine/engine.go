// Package engine implements the access-control decision engine: given a
// requested domain, a requesting user and the current rule set it produces a
// Verdict saying whether navigation is permitted and which rule decided it.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/log"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
)

// Engine evaluates access checks against a RuleSource. It holds no state
// between calls; each evaluation is a pure function of the store snapshot,
// so concurrent evaluations are safe.
type Engine struct {
	source RuleSource
	index  MatchIndex
	logger log.Logger
}

// Options configures an Engine. Index may be nil, in which case every
// evaluation scans the full rule sequence.
type Options struct {
	Source RuleSource
	Index  MatchIndex
	Logger log.Logger
}

// New constructs an Engine.
func New(opts Options) *Engine {
	l := opts.Logger
	if l == nil {
		l = log.NewNoopLogger()
	}
	return &Engine{
		source: opts.Source,
		index:  opts.Index,
		logger: l,
	}
}

// Evaluate decides whether requestingUserID may navigate to requestedDomain.
//
// The checks run in a fixed order, each either short-circuiting with a
// verdict or falling through:
//
//  1. filtering disabled        -> allow, no rule
//  2. unknown user              -> deny, no rule (expected outcome, not an error)
//  3. admin user                -> allow, no rule
//  4. exact rule match          -> rule verdict (beats any wildcard)
//  5. first wildcard in order   -> rule verdict
//  6. nothing matched           -> deny, no rule (default policy)
//
// requestedDomain must be a non-empty canonical hostname; callers strip
// schemes and normalize via urlnorm first. Store failures propagate and the
// returned verdict denies, so callers fail closed.
func (e *Engine) Evaluate(ctx context.Context, requestingUserID int64, requestedDomain string) (domain.Verdict, error) {
	if requestedDomain == "" {
		return domain.Deny(), fmt.Errorf("%w: empty domain", domain.ErrInvalidDomain)
	}

	settings, err := e.source.GetAppSettings(ctx)
	if err != nil {
		return domain.Deny(), err
	}
	if !settings.FilteringEnabled {
		return domain.Allow(), nil
	}

	user, err := e.source.GetUser(ctx, requestingUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Should not happen after successful authentication; fail closed.
			e.logger.Warn(map[string]any{
				"user_id": requestingUserID,
				"domain":  requestedDomain,
			}, "access check for unknown user denied")
			return domain.Deny(), nil
		}
		return domain.Deny(), err
	}
	if user.IsAdmin {
		return domain.Allow(), nil
	}

	m, err := e.lookup(ctx, requestedDomain)
	if err != nil {
		return domain.Deny(), err
	}

	verdict := domain.Deny()
	if m.Found {
		verdict = domain.VerdictFor(m.Rule)
	}
	e.logger.Debug(map[string]any{
		"user_id": requestingUserID,
		"domain":  requestedDomain,
		"allowed": verdict.IsAllowed,
		"matched": m.Found,
	}, "access check evaluated")
	return verdict, nil
}

// lookup resolves the rule match for a domain, consulting the index fast
// paths first when one is configured. A negative prefilter answer means no
// rule can match, so the default policy applies without scanning.
//
// The generation is read before the rule scan; a rule mutation landing in
// between rebuilds the index and advances it, so Put discards the result
// instead of caching a match from the replaced rule set.
func (e *Engine) lookup(ctx context.Context, name string) (MatchResult, error) {
	if e.index == nil {
		rules, err := e.source.ListWebsiteRules(ctx)
		if err != nil {
			return MatchResult{}, err
		}
		return matchRules(rules, name), nil
	}

	if !e.index.MightMatch(name) {
		return MatchResult{}, nil
	}
	if m, ok := e.index.Get(name); ok {
		return m, nil
	}

	gen := e.index.Generation()
	rules, err := e.source.ListWebsiteRules(ctx)
	if err != nil {
		return MatchResult{}, err
	}
	m := matchRules(rules, name)
	e.index.Put(name, m, gen)
	return m, nil
}
