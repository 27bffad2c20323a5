package tokenizer

import (
	"github.com/gnoswap-labs/tmscope/internal/grammar"
	"github.com/gnoswap-labs/tmscope/internal/pattern"
)

// result is the winning candidate of a search. rule is nil when the end
// pattern of the innermost frame won.
type result struct {
	rule  *grammar.Rule
	match *pattern.Match
}

func (r *result) isEnd() bool {
	return r.rule == nil
}

// findMatch searches text from offset for the earliest match among the end
// pattern (if any) and rules, in that order unless endLast moves the end
// pattern behind the rules. Ties on the start offset go to the candidate
// tried first. A nil result means no candidate matches on the rest of the
// line. An error means a candidate ran out of time; the position then counts
// as unmatched.
func findMatch(g *grammar.Grammar, text []rune, offset int, end *pattern.Pattern, endLast bool, rules []grammar.RuleID) (*result, error) {
	var best *result

	try := func(rule *grammar.Rule, p *pattern.Pattern) (bool, error) {
		m, err := p.FindAt(text, offset)
		if err != nil {
			return false, err
		}
		if m == nil {
			return false, nil
		}
		if best == nil || m.Start < best.match.Start {
			best = &result{rule: rule, match: m}
		}
		// nothing can start earlier than the search position
		return m.Start == offset, nil
	}

	if end != nil && !endLast {
		if done, err := try(nil, end); err != nil || done {
			return best, err
		}
	}
	for _, id := range rules {
		rule := g.Rule(id)
		if done, err := try(rule, rule.Pattern); err != nil || done {
			return best, err
		}
	}
	if end != nil && endLast {
		if _, err := try(nil, end); err != nil {
			return best, err
		}
	}
	return best, nil
}
