package tokenizer

import (
	"errors"
	"fmt"

	"github.com/gnoswap-labs/tmscope/internal/grammar"
	"github.com/gnoswap-labs/tmscope/internal/pattern"
)

// ErrStackUnderflow is returned by Pop on an empty stack.
var ErrStackUnderflow = errors.New("scope stack underflow")

// Frame is an open begin/end region. Its end pattern already has the text
// captured by the begin match substituted for any back-references, so two
// frames of the same rule may close on different text.
type Frame struct {
	Rule          grammar.RuleID
	EndSource     string
	NameScopes    []string
	ContentScopes []string

	end   *pattern.Pattern
	outer []string
	inner []string
}

// Scopes returns the scope chain of the frame's interior, root first.
func (f *Frame) Scopes() []string {
	return f.inner
}

func (f *Frame) equal(o *Frame) bool {
	return f.Rule == o.Rule &&
		f.EndSource == o.EndSource &&
		equalStrings(f.NameScopes, o.NameScopes) &&
		equalStrings(f.ContentScopes, o.ContentScopes)
}

// LineState is the content of a scope stack at a line boundary. The zero
// value is the empty state a document starts with.
type LineState struct {
	frames []Frame
}

// Depth returns the number of open frames.
func (s LineState) Depth() int {
	return len(s.frames)
}

// Frames returns a copy of the open frames, outermost first.
func (s LineState) Frames() []Frame {
	return append([]Frame(nil), s.frames...)
}

// Equal reports whether both states hold structurally equal frames.
func (s LineState) Equal(o LineState) bool {
	if len(s.frames) != len(o.frames) {
		return false
	}
	for i := range s.frames {
		if !s.frames[i].equal(&o.frames[i]) {
			return false
		}
	}
	return true
}

// ScopeStack is the stack of open frames while a line is tokenized.
type ScopeStack struct {
	grammar *grammar.Grammar
	root    []string
	base    []grammar.RuleID
	frames  []Frame
}

// NewScopeStack returns a stack for g positioned at state.
func NewScopeStack(g *grammar.Grammar, state LineState) *ScopeStack {
	s := &ScopeStack{
		grammar: g,
		root:    []string{g.ScopeName()},
		base:    g.Candidates(),
	}
	s.Restore(state)
	return s
}

// newCaptureStack returns an empty stack whose bottom rules are rules and
// whose scope chain starts with chain.
func newCaptureStack(g *grammar.Grammar, chain []string, rules []grammar.RuleID) *ScopeStack {
	return &ScopeStack{grammar: g, root: chain, base: rules}
}

// Push opens a frame for rule, a begin/end rule whose begin pattern matched
// with captures.
func (s *ScopeStack) Push(rule *grammar.Rule, captures []string) error {
	if rule.Kind != grammar.KindBeginEnd {
		return fmt.Errorf("push of %s rule %s", rule.Kind, rule.Path)
	}

	f := Frame{
		Rule:          rule.ID,
		NameScopes:    rule.Name.Resolve(captures),
		ContentScopes: rule.ContentName.Resolve(captures),
	}
	if rule.EndTemplate != nil {
		src, p, err := rule.EndTemplate.Expand(captures)
		if err != nil {
			return fmt.Errorf("expanding end pattern of %s: %w", rule.Path, err)
		}
		f.EndSource, f.end = src, p
	} else {
		f.EndSource, f.end = rule.End.String(), rule.End
	}
	f.outer = concat(s.ScopeChain(), f.NameScopes)
	f.inner = concat(f.outer, f.ContentScopes)

	s.frames = append(s.frames, f)
	return nil
}

// Pop removes the top frame.
func (s *ScopeStack) Pop() (Frame, error) {
	if len(s.frames) == 0 {
		return Frame{}, ErrStackUnderflow
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

// Top returns the innermost frame.
func (s *ScopeStack) Top() (*Frame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return &s.frames[len(s.frames)-1], true
}

// Depth returns the number of open frames.
func (s *ScopeStack) Depth() int {
	return len(s.frames)
}

// ScopeChain returns the scopes applying to text inside the innermost frame,
// outermost first.
func (s *ScopeStack) ScopeChain() []string {
	if f, ok := s.Top(); ok {
		return f.inner
	}
	return s.root
}

// Snapshot captures the open frames.
func (s *ScopeStack) Snapshot() LineState {
	if len(s.frames) == 0 {
		return LineState{}
	}
	return LineState{frames: append([]Frame(nil), s.frames...)}
}

// Restore replaces the open frames with those of state.
func (s *ScopeStack) Restore(state LineState) {
	s.frames = append([]Frame(nil), state.frames...)
}

// active returns what the match engine searches for at the current depth:
// the end pattern of the innermost frame (nil at the bottom), whether it
// yields to the frame's children on ties, and the rules in effect.
func (s *ScopeStack) active() (*pattern.Pattern, bool, []grammar.RuleID) {
	f, ok := s.Top()
	if !ok {
		return nil, false, s.base
	}
	rule := s.grammar.Rule(f.Rule)
	return f.end, rule.ApplyEndPatternLast, rule.Children
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
