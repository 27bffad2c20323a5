package grammar

import (
	"github.com/gnoswap-labs/tmscope/internal/pattern"
)

// RuleID addresses a rule inside its Grammar. Rules refer to each other by
// ID, which lets a rule include itself without the compiler unrolling it.
type RuleID int

// Kind is the form of a compiled rule.
type Kind int

const (
	KindMatch Kind = iota
	KindBeginEnd
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindBeginEnd:
		return "begin/end"
	}
	return "unknown"
}

// Capture assigns a scope and optionally a list of rules to one capture
// group. Rules are tokenized inside the captured text.
type Capture struct {
	Name  ScopeName
	Rules []RuleID
}

// Captures maps capture groups, by number or by group name, to their Capture.
type Captures struct {
	Indexed []*Capture
	Named   map[string]*Capture
}

// Empty reports whether no capture is assigned.
func (c Captures) Empty() bool {
	return len(c.Indexed) == 0 && len(c.Named) == 0
}

// At returns the capture assigned to group n.
func (c Captures) At(n int) *Capture {
	if n < 0 || n >= len(c.Indexed) {
		return nil
	}
	return c.Indexed[n]
}

// Rule is a compiled Match or BeginEnd rule.
//
// For KindMatch, Pattern is the match and Captures apply to it. For
// KindBeginEnd, Pattern is the begin pattern and Captures are the begin
// captures; the end pattern is either End or, when it refers to begin
// captures, EndTemplate, compiled per frame.
type Rule struct {
	ID          RuleID
	Kind        Kind
	Path        string
	Name        ScopeName
	ContentName ScopeName
	Pattern     *pattern.Pattern
	Captures    Captures

	End                 *pattern.Pattern
	EndTemplate         *pattern.Template
	EndCaptures         Captures
	Children            []RuleID
	ApplyEndPatternLast bool
}

// EndSource returns the unexpanded end pattern of a BeginEnd rule.
func (r *Rule) EndSource() string {
	switch {
	case r.End != nil:
		return r.End.String()
	case r.EndTemplate != nil:
		return r.EndTemplate.String()
	}
	return ""
}
