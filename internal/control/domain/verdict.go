package domain

// Verdict is the engine's output for one access check. It is constructed
// fresh per evaluation and never persisted.
type Verdict struct {
	IsAllowed   bool         `json:"isAllowed"`
	MatchedRule *WebsiteRule `json:"rule,omitempty"`
}

// Allow returns an allowing verdict with no matched rule (global bypass,
// admin exemption).
func Allow() Verdict {
	return Verdict{IsAllowed: true}
}

// Deny returns a denying verdict with no matched rule (unknown user,
// default policy).
func Deny() Verdict {
	return Verdict{IsAllowed: false}
}

// VerdictFor returns the verdict a matched rule dictates. The rule is copied
// so the verdict stays valid after the rule set changes.
func VerdictFor(rule WebsiteRule) Verdict {
	r := rule
	return Verdict{IsAllowed: r.IsAllowed, MatchedRule: &r}
}

// Status maps the verdict to the activity status recorded for it.
func (v Verdict) Status() ActivityStatus {
	if v.IsAllowed {
		return StatusAllowed
	}
	return StatusBlocked
}
